// Package modkit provides module wiring and core deps
package modkit

import (
	"rollcall/internal/modkit/repokit"
	"rollcall/internal/platform/config"
	"rollcall/internal/platform/logger"
	"rollcall/internal/platform/store"
)

// Deps holds core dependencies passed to modules.
// PG and CH are nil when the backend is disabled
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	PG  repokit.TxRunner
	CH  store.Clickhouse
}

// FromStore copies the store seams into Deps
func FromStore(log logger.Logger, cfg config.Conf, st *store.Store) Deps {
	d := Deps{Log: log, Cfg: cfg}
	if st != nil {
		d.PG, d.CH = st.PG, st.CH
	}
	return d
}
