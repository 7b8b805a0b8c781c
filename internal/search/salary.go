package search

import (
	"strings"

	"github.com/amishk599/workmatch/internal/model"
)

// highPayingFloor is the salary floor per country applied to "high paying"
// searches, in local currency.
var highPayingFloor = map[string]int{
	"gb": 50000,
	"us": 85000,
	"de": 65000,
	"fr": 60000,
	"ca": 80000,
	"au": 90000,
	"in": 1500000,
}

const defaultHighPayingFloor = 50000

// ApplySalaryThreshold raises f.SalaryMin to the country's high-paying floor
// when term asks for high paying roles. A higher explicit floor is kept.
func ApplySalaryThreshold(term string, f model.Filters) model.Filters {
	if !strings.Contains(strings.ToLower(term), "high paying") {
		return f
	}
	floor, ok := highPayingFloor[strings.ToLower(f.Country)]
	if !ok {
		floor = defaultHighPayingFloor
	}
	f.SalaryMin = max(f.SalaryMin, floor)
	return f
}
