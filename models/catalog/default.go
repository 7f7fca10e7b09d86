package catalog

import (
	"github.com/artie-labs/warehouse/lib/dwh/aggregate"
	"github.com/artie-labs/warehouse/lib/dwh/history"
	"github.com/artie-labs/warehouse/lib/dwh/merge"
)

// mirrored maps staging columns onto warehouse columns of the same name.
func mirrored(names ...string) []merge.Column {
	columns := make([]merge.Column, len(names))
	for i, name := range names {
		columns[i] = merge.Column{Source: name, Target: name}
	}
	return columns
}

// prefixed maps a staging key onto its `src_` prefixed warehouse column.
func prefixed(names ...string) []merge.Column {
	columns := make([]merge.Column, len(names))
	for i, name := range names {
		columns[i] = merge.Column{Source: name, Target: "src_" + name}
	}
	return columns
}

// Default returns the classic models warehouse.
func Default() Catalog {
	return Catalog{
		Entities:         defaultEntities(),
		Histories:        defaultHistories(),
		DailySummaries:   []aggregate.DailySummary{dailyCustomerSummary(), dailyProductSummary()},
		MonthlySummaries: []aggregate.MonthlySummary{monthlyCustomerSummary(), monthlyProductSummary()},
	}
}

func defaultEntities() []merge.Entity {
	return []merge.Entity{
		{
			Name:         "productlines",
			Source:       "productlines",
			Target:       "productlines",
			NaturalKeys:  mirrored("productLine"),
			Attributes:   mirrored("textDescription", "htmlDescription"),
			SurrogateKey: "dw_product_line_id",
		},
		{
			Name:        "products",
			Source:      "products",
			Target:      "products",
			NaturalKeys: prefixed("productCode"),
			Attributes: mirrored("productName", "productLine", "productScale", "productVendor", "productDescription",
				"quantityInStock", "buyPrice", "MSRP"),
			SurrogateKey: "dw_product_id",
			ForeignKeys: []merge.ForeignKey{{
				Column:                 "dw_product_line_id",
				SourceColumn:           "productLine",
				References:             "productlines",
				ReferencedKey:          "productLine",
				ReferencedSurrogateKey: "dw_product_line_id",
			}},
		},
		{
			Name:         "offices",
			Source:       "offices",
			Target:       "offices",
			NaturalKeys:  mirrored("officeCode"),
			Attributes:   mirrored("city", "phone", "addressLine1", "addressLine2", "state", "country", "postalCode", "territory"),
			SurrogateKey: "dw_office_id",
		},
		{
			Name:         "employees",
			Source:       "employees",
			Target:       "employees",
			NaturalKeys:  mirrored("employeeNumber"),
			Attributes:   mirrored("lastName", "firstName", "extension", "email", "officeCode", "reportsTo", "jobTitle"),
			SurrogateKey: "dw_employee_id",
			ForeignKeys: []merge.ForeignKey{
				{
					Column:                 "dw_office_id",
					SourceColumn:           "officeCode",
					References:             "offices",
					ReferencedKey:          "officeCode",
					ReferencedSurrogateKey: "dw_office_id",
				},
				{
					// Managers may arrive in the same batch as their reports.
					Column:                 "dw_reporting_employee_id",
					SourceColumn:           "reportsTo",
					ReferencedKey:          "employeeNumber",
					ReferencedSurrogateKey: "dw_employee_id",
				},
			},
		},
		{
			Name:        "customers",
			Source:      "customers",
			Target:      "customers",
			NaturalKeys: prefixed("customerNumber"),
			Attributes: mirrored("customerName", "contactLastName", "contactFirstName", "phone", "addressLine1", "addressLine2",
				"city", "state", "postalCode", "country", "salesRepEmployeeNumber", "creditLimit"),
			SurrogateKey: "dw_customer_id",
			ForeignKeys: []merge.ForeignKey{{
				Column:                 "dw_sales_employee_id",
				SourceColumn:           "salesRepEmployeeNumber",
				References:             "employees",
				ReferencedKey:          "employeeNumber",
				ReferencedSurrogateKey: "dw_employee_id",
			}},
		},
		{
			Name:        "orders",
			Source:      "orders",
			Target:      "orders",
			NaturalKeys: prefixed("orderNumber"),
			Attributes: append(mirrored("orderDate", "requiredDate", "shippedDate", "status", "comments", "cancelledDate"),
				prefixed("customerNumber")...),
			SurrogateKey: "dw_order_id",
			ForeignKeys: []merge.ForeignKey{{
				Column:                 "dw_customer_id",
				SourceColumn:           "customerNumber",
				References:             "customers",
				ReferencedKey:          "src_customerNumber",
				ReferencedSurrogateKey: "dw_customer_id",
			}},
		},
		{
			Name:         "orderdetails",
			Source:       "orderdetails",
			Target:       "orderdetails",
			NaturalKeys:  prefixed("orderNumber", "productCode"),
			Attributes:   mirrored("quantityOrdered", "priceEach", "orderLineNumber"),
			SurrogateKey: "dw_orderdetail_id",
			ForeignKeys: []merge.ForeignKey{
				{
					Column:                 "dw_order_id",
					SourceColumn:           "orderNumber",
					References:             "orders",
					ReferencedKey:          "src_orderNumber",
					ReferencedSurrogateKey: "dw_order_id",
				},
				{
					Column:                 "dw_product_id",
					SourceColumn:           "productCode",
					References:             "products",
					ReferencedKey:          "src_productCode",
					ReferencedSurrogateKey: "dw_product_id",
				},
			},
		},
		{
			Name:         "payments",
			Source:       "payments",
			Target:       "payments",
			NaturalKeys:  append(prefixed("customerNumber"), mirrored("checkNumber")...),
			Attributes:   mirrored("paymentDate", "amount"),
			SurrogateKey: "dw_payment_id",
			ForeignKeys: []merge.ForeignKey{{
				Column:                 "dw_customer_id",
				SourceColumn:           "customerNumber",
				References:             "customers",
				ReferencedKey:          "src_customerNumber",
				ReferencedSurrogateKey: "dw_customer_id",
			}},
		},
	}
}

func defaultHistories() []history.Tracking {
	return []history.Tracking{
		{
			Name:         "customer_history",
			Current:      "customers",
			History:      "customer_history",
			SurrogateKey: "dw_customer_id",
			Attributes:   []string{"creditLimit"},
		},
		{
			Name:         "product_history",
			Current:      "products",
			History:      "product_history",
			SurrogateKey: "dw_product_id",
			Attributes:   []string{"MSRP"},
		},
	}
}

var orderLines = []aggregate.Join{
	{Table: "orderdetails", Alias: "od", On: "o.dw_order_id = od.dw_order_id"},
}

var orderLinesWithProducts = []aggregate.Join{
	{Table: "orderdetails", Alias: "od", On: "o.dw_order_id = od.dw_order_id"},
	{Table: "products", Alias: "p", On: "od.dw_product_id = p.dw_product_id"},
}

func dailyCustomerSummary() aggregate.DailySummary {
	return aggregate.DailySummary{
		Name:            "daily_customer_summary",
		Table:           "daily_customer_summary",
		PeriodColumn:    "summary_date",
		DimensionColumn: "dw_customer_id",
		Metrics: []string{
			"order_count", "order_apd", "order_cost_amount",
			"cancelled_order_count", "cancelled_order_amount", "cancelled_order_apd",
			"shipped_order_count", "shipped_order_amount", "shipped_order_apd",
			"payment_apd", "payment_amount",
			"products_ordered_qty", "products_items_qty", "order_mrp_amount",
			"new_customer_apd", "new_customer_paid_apd",
		},
		Contributions: []aggregate.Contribution{
			{
				Name:      "orders",
				Table:     "orders",
				Alias:     "o",
				Joins:     orderLinesWithProducts,
				Period:    "o.orderDate",
				Dimension: "o.dw_customer_id",
				Metrics: map[string]string{
					"order_count":          "COUNT(DISTINCT o.dw_order_id)",
					"order_apd":            "1",
					"order_cost_amount":    "SUM(od.priceEach * od.quantityOrdered)",
					"products_ordered_qty": "COUNT(DISTINCT od.dw_product_id)",
					"products_items_qty":   "COUNT(od.quantityOrdered)",
					"order_mrp_amount":     "SUM(p.MSRP * od.quantityOrdered)",
				},
			},
			{
				Name:      "new_customers",
				Table:     "customers",
				Alias:     "c",
				Period:    "c.src_create_timestamp",
				Dimension: "c.dw_customer_id",
				Metrics:   map[string]string{"new_customer_apd": "1"},
			},
			{
				Name:      "cancelled_orders",
				Table:     "orders",
				Alias:     "o",
				Joins:     orderLines,
				Period:    "o.cancelledDate",
				Dimension: "o.dw_customer_id",
				Where:     "o.status = 'Cancelled'",
				Metrics: map[string]string{
					"cancelled_order_count":  "COUNT(o.dw_order_id)",
					"cancelled_order_amount": "SUM(od.priceEach * od.quantityOrdered)",
					"cancelled_order_apd":    "1",
				},
			},
			{
				Name:      "payments",
				Table:     "payments",
				Alias:     "p",
				Period:    "p.paymentDate",
				Dimension: "p.dw_customer_id",
				Metrics: map[string]string{
					"payment_apd":           "1",
					"payment_amount":        "SUM(p.amount)",
					"new_customer_paid_apd": "1",
				},
			},
			{
				Name:      "shipped_orders",
				Table:     "orders",
				Alias:     "o",
				Joins:     orderLines,
				Period:    "o.shippedDate",
				Dimension: "o.dw_customer_id",
				Where:     "o.status = 'Shipped'",
				Metrics: map[string]string{
					"shipped_order_count":  "COUNT(o.dw_order_id)",
					"shipped_order_amount": "SUM(od.priceEach * od.quantityOrdered)",
					"shipped_order_apd":    "1",
				},
			},
		},
	}
}

func dailyProductSummary() aggregate.DailySummary {
	return aggregate.DailySummary{
		Name:            "daily_product_summary",
		Table:           "daily_product_summary",
		PeriodColumn:    "summary_date",
		DimensionColumn: "dw_product_id",
		Metrics: []string{
			"customer_apd", "product_cost_amount", "product_mrp_amount",
			"cancelled_product_qty", "cancelled_cost_amount", "cancelled_mrp_amount", "cancelled_order_apd",
		},
		Contributions: []aggregate.Contribution{
			{
				Name:      "product_sales",
				Table:     "orders",
				Alias:     "o",
				Joins:     orderLinesWithProducts,
				Period:    "o.orderDate",
				Dimension: "od.dw_product_id",
				Metrics: map[string]string{
					"customer_apd":        "COUNT(DISTINCT o.dw_customer_id)",
					"product_cost_amount": "SUM(od.priceEach * od.quantityOrdered)",
					"product_mrp_amount":  "SUM(p.MSRP * od.quantityOrdered)",
				},
			},
			{
				Name:      "cancelled_products",
				Table:     "orders",
				Alias:     "o",
				Joins:     orderLinesWithProducts,
				Period:    "o.cancelledDate",
				Dimension: "od.dw_product_id",
				Where:     "LOWER(TRIM(o.status)) = 'cancelled'",
				Metrics: map[string]string{
					"cancelled_product_qty": "SUM(od.quantityOrdered)",
					"cancelled_cost_amount": "SUM(od.priceEach * od.quantityOrdered)",
					"cancelled_mrp_amount":  "SUM(p.MSRP * od.quantityOrdered)",
					"cancelled_order_apd":   "COUNT(DISTINCT o.dw_order_id)",
				},
			},
		},
	}
}

func monthlyCustomerSummary() aggregate.MonthlySummary {
	return aggregate.MonthlySummary{
		Name:              "monthly_customer_summary",
		Table:             "monthly_customer_summary",
		Daily:             "daily_customer_summary",
		PeriodColumn:      "start_of_the_month_date",
		DailyPeriodColumn: "summary_date",
		DimensionColumn:   "dw_customer_id",
		Sums: []string{
			"order_count", "order_apd", "order_cost_amount",
			"cancelled_order_count", "cancelled_order_amount", "cancelled_order_apd",
			"shipped_order_count", "shipped_order_amount", "shipped_order_apd",
			"payment_apd", "payment_amount",
			"products_ordered_qty", "products_items_qty", "order_mrp_amount",
			"new_customer_apd", "new_customer_paid_apd",
		},
		ActiveCounts: []aggregate.ActiveCount{
			{Column: "order_apm"},
			{Column: "cancelled_order_apm", Indicator: "cancelled_order_count"},
			{Column: "shipped_order_apm", Indicator: "shipped_order_count"},
			{Column: "payment_apm", Indicator: "payment_amount"},
			{Column: "new_customer_apm", Indicator: "new_customer_apd"},
			{Column: "new_customer_paid_apm", Indicator: "new_customer_paid_apd"},
		},
	}
}

func monthlyProductSummary() aggregate.MonthlySummary {
	return aggregate.MonthlySummary{
		Name:              "monthly_product_summary",
		Table:             "monthly_product_summary",
		Daily:             "daily_product_summary",
		PeriodColumn:      "start_of_the_month_date",
		DailyPeriodColumn: "summary_date",
		DimensionColumn:   "dw_product_id",
		Sums: []string{
			"customer_apd", "product_cost_amount", "product_mrp_amount",
			"cancelled_product_qty", "cancelled_cost_amount", "cancelled_mrp_amount", "cancelled_order_apd",
		},
		ActiveCounts: []aggregate.ActiveCount{
			{Column: "customer_apm", Indicator: "customer_apd"},
			{Column: "cancelled_order_apm", Indicator: "cancelled_order_apd"},
		},
	}
}
