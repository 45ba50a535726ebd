// Package migrations embeds SQL migration files.
package migrations

import "embed"

// TenantFS contains the DDL applied to each tenant schema on provisioning.
//
//go:embed tenant/*.sql
var TenantFS embed.FS

// TenantDir is the directory within TenantFS where migrations live.
const TenantDir = "tenant"
