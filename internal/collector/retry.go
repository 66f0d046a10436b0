package collector

import (
	"errors"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ppiankov/compatspectre/internal/retry"
)

var authErrorSubstrings = []string{
	"authentication failed",
	"authentication error",
	"invalid credentials",
	"invalid password",
	"password is incorrect",
	"wrong password",
	"unknown user",
	"unauthorized",
	"access denied",
	"sqlstate[28000]",
	"sqlstate 28000",
	"code: 193",
	"code: 194",
	"code: 497",
	"code: 516",
}

// retryPolicy retries transient ClickHouse failures but never bad credentials
func retryPolicy() retry.Policy {
	policy := retry.DefaultPolicy()
	policy.Permanent = isAuthError
	return policy
}

func isAuthError(err error) bool {
	if err == nil {
		return false
	}

	var chErr *clickhouse.Exception
	if errors.As(err, &chErr) {
		switch chErr.Code {
		case 193, 194, 497, 516:
			return true
		}
	}

	errText := strings.ToLower(err.Error())
	for _, marker := range authErrorSubstrings {
		if strings.Contains(errText, marker) {
			return true
		}
	}

	return false
}
