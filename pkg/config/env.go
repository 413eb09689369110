package config

// EnvPrefix is passed to envconfig; individual fields carry fully
// qualified envconfig tags so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvDBDSN  = "TSCRIBE_DB_DSN"
	EnvDBHost = "TSCRIBE_DB_HOST"
	EnvDBUser = "TSCRIBE_DB_USER"
	EnvDBName = "TSCRIBE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
