package mysql

import (
	"github.com/airportsys/dbtunnel/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.DialectRegistration{
		Info: datasource.DialectInfo{
			Type:        "mysql",
			DisplayName: "MySQL / MariaDB",
			Description: "Connect to MySQL 5.7+ and MariaDB 10+",
		},
		Dialect: Dialect{},
	})
}
