package calendarsync

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/hkdf"
)

const (
	// SessionCookieName はOAuthリダイレクトをまたいで保留リクエストを識別するCookie名。
	SessionCookieName = "sync_session"

	sessionIDBytes = 32
	stateBytes     = 16
	keySize        = 32

	sessionKeyInfo = "travelplanner sync session key v1"
)

// SessionKeys はブラウザセッションIDから保存用のセッションキーを導出する。
// Cookieの生の値はDBに保存しない。
type SessionKeys struct {
	key []byte
}

// NewSessionKeys はサーバーの秘密値からBLAKE3の鍵をHKDFで導出してSessionKeysを生成する。
func NewSessionKeys(secret string) (*SessionKeys, error) {
	if secret == "" {
		return nil, fmt.Errorf("session key secret is empty")
	}
	reader := hkdf.New(sha256.New, []byte(secret), nil, []byte(sessionKeyInfo))
	key := make([]byte, keySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("HKDF key derivation failed: %w", err)
	}
	return &SessionKeys{key: key}, nil
}

// Derive はセッションIDのBLAKE3キー付きハッシュを16進文字列で返す。
func (k *SessionKeys) Derive(sessionID string) string {
	hasher, err := blake3.NewKeyed(k.key)
	if err != nil {
		panic("calendarsync: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(sessionID))
	return hex.EncodeToString(hasher.Sum(nil))
}

// NewSessionID は暗号的に安全なセッションIDを生成する。
func NewSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// ValidSessionID はCookieの値がNewSessionIDの形式かを判定する。
func ValidSessionID(sessionID string) bool {
	if len(sessionID) != sessionIDBytes*2 {
		return false
	}
	_, err := hex.DecodeString(sessionID)
	return err == nil
}

// newState はOAuthのstateパラメータを生成する。
func newState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
