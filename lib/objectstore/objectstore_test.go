package objectstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/artie-labs/warehouse/lib/config"
)

func TestKey(t *testing.T) {
	batchDate := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "CUSTOMERS/2024-03-01/customers.csv.gz", Key("", "customers", batchDate))
	assert.Equal(t, "classicmodels/ORDERDETAILS/2024-03-01/orderdetails.csv.gz", Key("classicmodels", "OrderDetails", batchDate))
	assert.Equal(t, "classicmodels/OFFICES/2024-03-01/offices.csv.gz", Key("classicmodels/", "offices", batchDate))
}

func TestOpen(t *testing.T) {
	_, err := Open(t.Context(), config.Landing{Kind: "azure", Bucket: "landing"})
	assert.ErrorContains(t, err, `unsupported landing kind: "azure"`)

	store, err := Open(t.Context(), config.Landing{Kind: "s3", Bucket: "landing", Region: "us-east-1"})
	assert.NoError(t, err)
	assert.Equal(t, "s3://landing/CUSTOMERS/2024-03-01/customers.csv.gz", store.URI("CUSTOMERS/2024-03-01/customers.csv.gz"))
}
