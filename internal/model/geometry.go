package model

// Point, Size, Rect and TextRange mirror §6's wire encodings for the
// native geometry/range structs the value unwrapper produces.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type TextRange struct {
	Location int `json:"location"`
	Length   int `json:"length"`
}

func (p Point) ToAttributeValue() AttributeValue {
	return Map(map[string]AttributeValue{
		"x": Double(p.X),
		"y": Double(p.Y),
	})
}

func (s Size) ToAttributeValue() AttributeValue {
	return Map(map[string]AttributeValue{
		"width":  Double(s.Width),
		"height": Double(s.Height),
	})
}

func (r Rect) ToAttributeValue() AttributeValue {
	return Map(map[string]AttributeValue{
		"x":      Double(r.X),
		"y":      Double(r.Y),
		"width":  Double(r.Width),
		"height": Double(r.Height),
	})
}

func (r TextRange) ToAttributeValue() AttributeValue {
	return Map(map[string]AttributeValue{
		"location": Int(int64(r.Location)),
		"length":   Int(int64(r.Length)),
	})
}
