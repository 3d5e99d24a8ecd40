package browse

import (
	"fmt"
	"time"

	"github.com/pquerna/otp/totp"
)

// TOTPCode generates the current time-based one-time password for the
// shared secret, as entered on the site's 2FA page.
func TOTPCode(secret string) (string, error) {
	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		return "", fmt.Errorf("browse: generate TOTP code: %w", err)
	}
	return code, nil
}
