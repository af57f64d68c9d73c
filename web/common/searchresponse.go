package common

type Pagination struct {
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

type SearchResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
	Counts     interface{} `json:"counts,omitempty"`
}

func NewSearchResponse(data interface{}, total int64, limit, offset int) *SearchResponse {
	return &SearchResponse{
		Data: data,
		Pagination: Pagination{
			Total:  total,
			Limit:  limit,
			Offset: offset,
		},
	}
}

func (r *SearchResponse) WithCounts(counts interface{}) *SearchResponse {
	r.Counts = counts
	return r
}
