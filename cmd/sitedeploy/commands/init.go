package commands

import (
	"git.home.luguber.info/inful/sitedeploy/internal/config"
	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
)

const defaultConfigPath = "sitedeploy.yaml"

// InitCmd writes a starter configuration file.
type InitCmd struct {
	Force bool `help:"Overwrite an existing configuration file"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	path := root.Config
	if path == "" {
		path = defaultConfigPath
	}
	if err := RunInit(path, i.Force); err != nil {
		return err
	}
	if g != nil && g.Logger != nil {
		g.Logger.Info("Configuration written", logfields.Path(path))
	}
	return nil
}

// RunInit writes the default configuration to configPath. An existing file is
// only replaced when force is set.
func RunInit(configPath string, force bool) error {
	return config.Init(configPath, force)
}
