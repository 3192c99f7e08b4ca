package commands

import (
	"git.home.luguber.info/inful/sitedeploy/internal/config"
	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
	"git.home.luguber.info/inful/sitedeploy/internal/server/httpserver"
	"git.home.luguber.info/inful/sitedeploy/internal/storage"
)

// StoreCmd implements the 'store' command: the local stand-in for a public
// bucket when store.type is fs.
type StoreCmd struct {
	Root string `help:"Store directory (overrides store.root)" type:"path"`
	Addr string `help:"Listen address (overrides http.store_addr)"`
}

func (s *StoreCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	if s.Root != "" {
		cfg.Store.Root = s.Root
	}
	if s.Addr != "" {
		cfg.HTTP.StoreAddr = s.Addr
	}
	cfg.Store.Type = config.StoreFS
	if err := config.ValidateConfig(cfg, storeSections...); err != nil {
		return err
	}
	if err := absStoreRoot(&cfg.Store); err != nil {
		return err
	}

	fs, err := storage.NewFSStore(cfg.Store.Root)
	if err != nil {
		return err
	}
	g.Logger.Info("Serving artifact store", logfields.Path(fs.Root()))
	return serveUntilSignal(g.Logger, httpserver.Endpoint{Name: "store", Addr: cfg.HTTP.StoreAddr, Handler: fs.Handler()})
}
