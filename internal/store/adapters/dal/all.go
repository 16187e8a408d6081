// Package dal importa todos los adapters para auto-registro.
//
//	import _ "github.com/dropDatabas3/authority/internal/store/adapters/dal"
package dal

import (
	_ "github.com/dropDatabas3/authority/internal/store/adapters/memory"
	_ "github.com/dropDatabas3/authority/internal/store/adapters/pg"
	_ "github.com/dropDatabas3/authority/internal/store/adapters/sqlite"
)
