package semantic

import (
	"fmt"
	"strings"
)

// ValidateExpression runs cheap syntactic checks on a DAX expression before
// any network or executor call. Full validation only happens server side.
func ValidateExpression(expression string) error {
	expr := strings.TrimSpace(expression)

	if len(expr) == 0 {
		return fmt.Errorf("expression cannot be empty")
	}

	if open, closed := strings.Count(expr, "("), strings.Count(expr, ")"); open != closed {
		return fmt.Errorf("unbalanced parentheses: %d opening, %d closing", open, closed)
	}

	if open, closed := strings.Count(expr, "["), strings.Count(expr, "]"); open != closed {
		return fmt.Errorf("unbalanced brackets: %d opening, %d closing", open, closed)
	}

	if strings.HasSuffix(expr, ",") {
		return fmt.Errorf("expression ends with trailing comma")
	}

	if strings.HasSuffix(expr, "(") {
		return fmt.Errorf("expression ends with unclosed function call")
	}

	return nil
}
