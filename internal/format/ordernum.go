package format

import "fmt"

// OrderNumber renders a record id as a zero-padded order number like "#000042".
func OrderNumber(id int64) string {
	if id < 0 {
		id = -id
	}
	return fmt.Sprintf("#%06d", id)
}
