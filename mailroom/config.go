package mailroom

import "fmt"

// Config controls the email ingestion pipeline.
type Config struct {
	// Domain is the ingestion domain; recipients at other domains are not
	// routed. Empty accepts any domain.
	Domain string `yaml:"domain"`

	// MaxAttempts bounds the retry loop. Default 3.
	MaxAttempts int `yaml:"max_attempts"`

	// MultiAccount routes by recipient slug when true; otherwise every
	// message goes to the first (single) account.
	MultiAccount bool `yaml:"multi_account"`

	// ConfirmationPhrases mark a message as a subscription-confirmation
	// email when any phrase appears in the subject or body,
	// case-insensitive. Policy, not law; override per deployment.
	ConfirmationPhrases []string `yaml:"confirmation_phrases"`
}

func (c *Config) defaults() {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if len(c.ConfirmationPhrases) == 0 {
		c.ConfirmationPhrases = []string{
			"confirm your subscription",
			"confirm your email",
			"verify your email",
			"activate your subscription",
			"click to confirm",
		}
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("mailroom: max_attempts must be >= 1, got %d", c.MaxAttempts)
	}
	return nil
}
