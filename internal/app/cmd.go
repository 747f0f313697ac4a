package app

import (
	"fmt"
	"strconv"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーを起動する。引数なしの場合の既定。
	CommandServe Command = "serve"
	// CommandWorker は保留中の同期リクエストを掃除するワーカーを起動する。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のサーバーの/healthを確認する。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

var commands = map[string]Command{
	"serve":       CommandServe,
	"worker":      CommandWorker,
	"migrate":     CommandMigrate,
	"healthcheck": CommandHealthcheck,
}

// ParseCommand は先頭の引数をサブコマンドとして解釈し、残りの引数と共に返す。
// 引数が空の場合はCommandServeを返す。未知のサブコマンドはエラーにする。
func ParseCommand(args []string) (Command, []string, error) {
	if len(args) == 0 {
		return CommandServe, nil, nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return "", nil, fmt.Errorf("unknown command %q (want serve, worker, migrate or healthcheck)", args[0])
	}
	return cmd, args[1:], nil
}

// MigrateDirection はmigrateサブコマンドの適用方向。
type MigrateDirection string

const (
	MigrateUp   MigrateDirection = "up"
	MigrateDown MigrateDirection = "down"
)

// parseMigrateArgs はmigrateサブコマンドの引数を解釈する。
//
//	migrate          すべて適用
//	migrate up       すべて適用
//	migrate down [N] N段（既定1）戻す
func parseMigrateArgs(args []string) (MigrateDirection, int, error) {
	if len(args) == 0 || (len(args) == 1 && args[0] == string(MigrateUp)) {
		return MigrateUp, 0, nil
	}
	if args[0] != string(MigrateDown) || len(args) > 2 {
		return "", 0, fmt.Errorf("usage: migrate [up | down [N]]")
	}
	if len(args) == 1 {
		return MigrateDown, 1, nil
	}
	steps, err := strconv.Atoi(args[1])
	if err != nil || steps <= 0 {
		return "", 0, fmt.Errorf("invalid step count %q: must be a positive integer", args[1])
	}
	return MigrateDown, steps, nil
}
