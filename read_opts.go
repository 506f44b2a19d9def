package archive

// readConfig holds read-time parameters.
type readConfig struct {
	password string
}

// ReadOption configures ReadEntries and ReadMetadata.
type ReadOption func(*readConfig)

// ReadWithPassword supplies the password for encrypted entries. Metadata
// reads never need it; content reads fail with [ErrPasswordRequired] when
// an encrypted entry is hit without one.
func ReadWithPassword(password string) ReadOption {
	return func(cfg *readConfig) {
		cfg.password = password
	}
}
