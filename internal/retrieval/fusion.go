package retrieval

// ObjectCues are the object-route signals of one candidate.
type ObjectCues struct {
	Inliers  int
	Coverage float64
	Color    float64 // histogram correlation in [-1, 1]
	Spatial  float64
	Shape    float64
}

// FuseObject combines object cues. The inlier count saturates at norm and
// the colour correlation is mapped to [0, 1]. The weights need not sum to 1
// when the shape term is active.
func FuseObject(w ObjectWeights, norm float64, c ObjectCues) float64 {
	inliers := 0.0
	if norm > 0 {
		inliers = min(float64(c.Inliers)/norm, 1.0)
	}
	color := (c.Color + 1) / 2
	return w.Inliers*inliers +
		w.Coverage*c.Coverage +
		w.Color*color +
		w.Spatial*c.Spatial +
		w.Shape*c.Shape
}

// LogoCues are the logo-route signals of one candidate.
type LogoCues struct {
	Hu          float64
	Shape       float64
	GoodMatches int
}

// FuseLogo combines the per-pair maximum Hu and shape similarities with the
// descriptor match count saturated at norm.
func FuseLogo(w LogoWeights, norm float64, c LogoCues) float64 {
	desc := 0.0
	if norm > 0 {
		desc = min(float64(c.GoodMatches)/norm, 1.0)
	}
	return w.Hu*c.Hu + w.Shape*c.Shape + w.Descriptor*desc
}

// GateScore is the coarse shape blend used for early logo rejection.
func GateScore(cfg LogoConfig, hu, shape float64) float64 {
	return cfg.GateHuWeight*hu + cfg.GateShapeWeight*shape
}
