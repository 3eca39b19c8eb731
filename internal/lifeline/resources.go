package lifeline

import (
	"github.com/kart-io/lifeline/pkg/component/storage"
	"github.com/kart-io/lifeline/pkg/infra/datasource"
)

// register adds every enabled resource to mgr. SQL databases come first so
// they start before and stop after the rest.
func (o *ResourceOptions) register(mgr *datasource.Manager, opts ...storage.Option) error {
	if r := o.MySQL; r.Enabled {
		if _, err := mgr.RegisterMySQL(r.Name, r.Options, opts...); err != nil {
			return err
		}
	}
	if r := o.Postgres; r.Enabled {
		if _, err := mgr.RegisterPostgres(r.Name, r.Options, opts...); err != nil {
			return err
		}
	}
	if r := o.SQLite; r.Enabled {
		if _, err := mgr.RegisterSQLite(r.Name, r.Options, opts...); err != nil {
			return err
		}
	}
	if r := o.Redis; r.Enabled {
		if _, err := mgr.RegisterRedis(r.Name, r.Options, opts...); err != nil {
			return err
		}
	}
	if r := o.MongoDB; r.Enabled {
		if _, err := mgr.RegisterMongoDB(r.Name, r.Options, opts...); err != nil {
			return err
		}
	}
	if r := o.Etcd; r.Enabled {
		if _, err := mgr.RegisterEtcd(r.Name, r.Options, opts...); err != nil {
			return err
		}
	}
	if r := o.NATS; r.Enabled {
		if _, err := mgr.RegisterNATS(r.Name, r.Options, opts...); err != nil {
			return err
		}
	}
	return nil
}
