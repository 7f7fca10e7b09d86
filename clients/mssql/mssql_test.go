package mssql

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/artie-labs/warehouse/lib/config"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "sqlserver://sa:pw@localhost:1433?database=classicmodels",
		DSN(config.Database{Host: "localhost", Database: "classicmodels", Username: "sa", Password: "pw"}))
	assert.Equal(t, "sqlserver://sa:pw@db:14330?database=dw",
		DSN(config.Database{Host: "db", Port: 14330, Database: "dw", Username: "sa", Password: "pw"}))
}
