package archive

// DefaultLevel is the deflate effort used when no level option is set.
const DefaultLevel = 6

// writeConfig holds validated write-time parameters.
type writeConfig struct {
	level       int
	password    string
	strength    EncryptionStrength
	comment     string
	concurrency int
}

// WriteOption configures archive creation.
type WriteOption func(*writeConfig)

// WriteWithLevel sets the compression effort, 0-9. Level 0 stores entries
// uncompressed; levels 1-9 run deflate at increasing effort.
func WriteWithLevel(level int) WriteOption {
	return func(cfg *writeConfig) {
		cfg.level = level
	}
}

// WriteWithPassword enables per-entry encryption. Every file payload is
// sealed with WinZip AES; an empty password disables encryption.
func WriteWithPassword(password string) WriteOption {
	return func(cfg *writeConfig) {
		cfg.password = password
	}
}

// WriteWithEncryptionStrength selects the AES key size for encrypted
// entries. Ignored unless a password is set; the default is
// [EncryptionAES256].
func WriteWithEncryptionStrength(s EncryptionStrength) WriteOption {
	return func(cfg *writeConfig) {
		cfg.strength = s
	}
}

// WriteWithComment sets the archive-level comment stored in the end record.
func WriteWithComment(comment string) WriteOption {
	return func(cfg *writeConfig) {
		cfg.comment = comment
	}
}

// WriteWithConcurrency bounds how many entry payloads are compressed in
// parallel. Placement into the output buffer stays sequential in input
// order regardless. Zero uses one worker per CPU; one disables parallelism.
func WriteWithConcurrency(n int) WriteOption {
	return func(cfg *writeConfig) {
		cfg.concurrency = n
	}
}

// validate runs once before any entry is processed; failures reject the
// whole operation with an invalid-configuration error.
func (cfg *writeConfig) validate() error {
	if cfg.level < 0 || cfg.level > 9 {
		return configErrorf("compression level %d out of range 0-9", cfg.level)
	}
	if cfg.password != "" {
		if cfg.strength < EncryptionAES128 || cfg.strength > EncryptionAES256 {
			return configErrorf("encryption strength %d out of range 1-3", cfg.strength)
		}
	}
	if len(cfg.comment) > maxFieldLen {
		return configErrorf("archive comment of %d bytes exceeds the format limit", len(cfg.comment))
	}
	if cfg.concurrency < 0 {
		return configErrorf("concurrency %d is negative", cfg.concurrency)
	}
	return nil
}

func (cfg *writeConfig) encrypted() bool { return cfg.password != "" }
