package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/treestate/cmd/treestate/commands"
	ferrors "git.home.luguber.info/inful/treestate/internal/foundation/errors"
	"git.home.luguber.info/inful/treestate/internal/version"
)

func main() {
	cli := &commands.CLI{}
	global := &commands.Global{Logger: slog.Default()}

	parser := kong.Parse(cli,
		kong.Name("treestate"),
		kong.Description("Hierarchical reactive state store with change journal, feed and inspector."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(global, cli),
	)

	if err := parser.Run(); err != nil {
		ferrors.NewCLIErrorAdapter(cli.Verbose, global.Logger).HandleError(err)
	}
}
