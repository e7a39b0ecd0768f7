package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/treestate/internal/appdef"
	"git.home.luguber.info/inful/treestate/internal/config"
	ferrors "git.home.luguber.info/inful/treestate/internal/foundation/errors"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing files"`
}

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	return RunInit(os.Stdout, root.Config, i.Force)
}

// RunInit writes an example configuration and, next to it, the example
// application definition it references.
func RunInit(w io.Writer, configPath string, force bool) error {
	_, _ = fmt.Fprintln(w, "Initializing treestate project")
	_, _ = fmt.Fprintf(w, "Writing configuration to %s\n", configPath)
	if err := config.Init(configPath, force); err != nil {
		_, _ = fmt.Fprintln(w, "Initialization failed")
		return err
	}

	defPath := filepath.Join(filepath.Dir(configPath), "app.yaml")
	if _, err := os.Stat(defPath); err == nil && !force {
		_, _ = fmt.Fprintf(w, "Keeping existing application definition %s\n", defPath)
		return nil
	}

	data, err := appdef.Example().Marshal()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "Writing application definition to %s\n", defPath)
	if err := os.WriteFile(defPath, data, 0o600); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "failed to write application definition").
			WithContext("file", defPath).
			Build()
	}
	_, _ = fmt.Fprintln(w, "initialized successfully")
	return nil
}
