package model

// Card carries the fields of the simulated card gateway. Only format and
// checksum are verified.
type Card struct {
	Number     string `json:"card_number" validate:"required,credit_card"`
	Expiry     string `json:"expiry" validate:"required,card_expiry"`
	CVV        string `json:"cvv" validate:"required,card_cvv"`
	HolderName string `json:"cardholder_name,omitempty" validate:"omitempty,max=100"`
}

// Last4 is safe to log.
func (c *Card) Last4() string {
	digits := make([]byte, 0, len(c.Number))
	for i := 0; i < len(c.Number); i++ {
		if c.Number[i] >= '0' && c.Number[i] <= '9' {
			digits = append(digits, c.Number[i])
		}
	}
	if len(digits) < 4 {
		return ""
	}
	return string(digits[len(digits)-4:])
}
