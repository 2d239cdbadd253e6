package domain

// AddressSnapshot is the display copy of a delivery address captured at
// checkout time. The zone/address provider owns the full record; orders
// keep only what is needed to render the shipment.
type AddressSnapshot struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Lines []string `json:"lines"`
	Phone string   `json:"phone"`
}

func (a AddressSnapshot) Empty() bool {
	return a.ID == ""
}
