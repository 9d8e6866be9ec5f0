package seats

import "fmt"

func planMinimumSeatsMessage(baseSeats int) string {
	return fmt.Sprintf("Plan has a minimum of %d seats.", baseSeats)
}

func planMaxAdditionalSeatsMessage(maxAdditional int) string {
	return fmt.Sprintf("Organization plan allows a maximum of %d additional seats.", maxAdditional)
}

func seatsFilledMessage(occupied, newTotal int) string {
	return fmt.Sprintf("Your organization currently has %d seats filled. Your new plan only has (%d) seats. Remove some users.", occupied, newTotal)
}
