package mysql

import (
	"fmt"
	"net/url"
)

// BuildDSN creates a MySQL Data Source Name from the options. The password
// is escaped so characters like @ and / cannot break parsing.
//
//	root:secret@tcp(localhost:3306)/mydb?charset=utf8mb4&parseTime=True&loc=Local
func BuildDSN(opts *Options) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		opts.Username,
		url.QueryEscape(opts.Password),
		opts.Host,
		opts.Port,
		opts.Database,
	)
}
