package booking

import (
	"time"

	"github.com/warp/studio-engine/generic"
)

// Price is the validated period of a request and what it costs.
type Price struct {
	Period generic.Period
	Units  int
	Price  generic.Money
}

// Quote validates [start, end] against the resource's rule and prices it.
// The result is a pure function of the inputs.
func Quote(resource generic.Resource, start, end time.Time) (Price, error) {
	rule := resource.Rule()
	period := rule.Normalize(generic.Period{
		Start: generic.At(start, rule.Granularity),
		End:   generic.At(end, rule.Granularity),
	})
	if err := rule.Validate(period); err != nil {
		return Price{}, err
	}

	units := rule.Units(period)
	return Price{
		Period: period,
		Units:  units,
		Price:  resource.Rate.MulInt(units),
	}, nil
}
