package config

// EnvPrefix is intentionally empty: every variable names its full
// SHELFLINE_-prefixed key in its envconfig tag.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "SHELFLINE_DB_DSN"
	EnvDBHost = "SHELFLINE_DB_HOST"
	EnvDBUser = "SHELFLINE_DB_USER"
	EnvDBName = "SHELFLINE_DB_NAME"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
