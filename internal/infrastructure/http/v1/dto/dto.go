package dto

type CoverageAlgebraRequest struct {
	Operands []string `json:"operands" validate:"required,min=1,dive,required"`
	Frame    string   `json:"frame" validate:"omitempty,oneof=C G E"`
	// ReduceTo coarsens the result to at most this many cells when positive.
	ReduceTo int `json:"reduce_to" validate:"gte=0"`
}

type CoverageResponse struct {
	MOC      string  `json:"moc"`
	MaxOrder uint8   `json:"max_order"`
	Cells    int     `json:"cells"`
	Sky      float64 `json:"sky_fraction"`
	Empty    bool    `json:"empty"`
}

type ContainsRequest struct {
	MOC   string  `form:"moc" validate:"required"`
	Frame string  `form:"frame" validate:"omitempty,oneof=C G E"`
	Lon   float64 `form:"lon" validate:"gte=0,lt=360"`
	Lat   float64 `form:"lat" validate:"gte=-90,lte=90"`
}

type ContainsResponse struct {
	Contains bool `json:"contains"`
}

type CatalogPoint struct {
	Lon float64 `json:"lon" validate:"gte=0,lt=360"`
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
}

type CatalogCoverageRequest struct {
	Points []CatalogPoint `json:"points" validate:"required,min=1,dive"`
	Order  uint8          `json:"order" validate:"lte=29"`
	Radius float64        `json:"radius" validate:"gte=0,lte=180"`
	Frame  string         `json:"frame" validate:"omitempty,oneof=C G E"`
}

type ViewRequest struct {
	Lon    float64 `json:"lon" validate:"gte=0,lt=360"`
	Lat    float64 `json:"lat" validate:"gte=-90,lte=90"`
	Radius float64 `json:"radius" validate:"gt=0,lte=180"`
	Order  uint8   `json:"order" validate:"lte=29"`
	Slice  int     `json:"slice" validate:"gte=0"`
}

type SurveyResponse struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Format      string `json:"format"`
	MaxOrder    uint8  `json:"max_order"`
	Slices      int    `json:"slices"`
	AllskyOrder int    `json:"allsky_order"`
	Coverage    string `json:"coverage,omitempty"`
}

type ReduceRequest struct {
	MOC    string `json:"moc" validate:"required"`
	Frame  string `json:"frame" validate:"omitempty,oneof=C G E"`
	Target int    `json:"target" validate:"gte=1"`
}
