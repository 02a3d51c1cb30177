package request

// CreateJobRequest triggers a collection run. Exactly one field must be set.
type CreateJobRequest struct {
	Keyword    string `json:"keyword"`
	SellerName string `json:"seller_name"`
}
