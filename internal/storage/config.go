package storage

// DefaultPath is the database file created in the working directory
// when no override is configured.
const DefaultPath = "db.dotchat.sqlite"

// Config defines fields used for configuring a Store instance.
type Config struct {
	// Path of the sqlite database file. The schema is created and the
	// default data seeded when the file does not exist yet.
	Path string `env:"DB_PATH"`
}

func (c Config) path() string {
	if c.Path == "" {
		return DefaultPath
	}
	return c.Path
}
