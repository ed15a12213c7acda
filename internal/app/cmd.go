package app

import (
	"fmt"
	"strings"
)

// Command はblogmanのサブコマンド。
type Command string

const (
	// CommandServe は公開ページと管理画面を配信する。引数省略時の既定。
	CommandServe Command = "serve"
	// CommandMigrate はストアのスキーマ（PostgreSQLのテーブル、MongoDBのインデックス）を整える。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のサーバーの/healthを叩く。設定の読み込みは行わない。
	CommandHealthcheck Command = "healthcheck"
)

// commands はParseCommandが受け付けるサブコマンドの一覧。Usageの表示順を兼ねる。
var commands = []Command{CommandServe, CommandMigrate, CommandHealthcheck}

// ParseCommand は先頭の引数をサブコマンドとして解釈する。
// 引数が無ければCommandServe、未知のサブコマンドはエラーを返す。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}
	for _, c := range commands {
		if string(c) == args[0] {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown command %q: %s", args[0], Usage())
}

// Usage は利用可能なサブコマンドを1行で返す。
func Usage() string {
	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = string(c)
	}
	return "usage: blogman [" + strings.Join(names, "|") + "]"
}
