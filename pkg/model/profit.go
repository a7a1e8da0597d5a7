package model

// SingleProfits returns both sides' profits at a single-homing solution
// (da, sa, db, sb).
func SingleProfits(a float64, x []float64) (float64, float64) {
	da, sa, db, sb := x[0], x[1], x[2], x[3]
	p1 := da*(1-da-db-a*da/sa) - a*sa*(sa+sb)
	p2 := db*(1-da-db-db/sb) - sb*(sa+sb)
	return p1, p2
}

// MultiProfits returns both sides' profits at a multi-homing solution.
// Side 2 uses the same expression as under single-homing.
func MultiProfits(a float64, x []float64) (float64, float64) {
	da, sa, db, sb := x[0], x[1], x[2], x[3]
	p1 := da*(1-da-db-(a*da+db)/(sa+sb)) - a*sa*(sa+sb)
	p2 := db*(1-da-db-db/sb) - sb*(sa+sb)
	return p1, p2
}

// Welfare holds the monopoly profit and the surplus of each participant group.
type Welfare struct {
	Profit        float64
	RiderSurplus  float64
	DriverSurplus float64
}

// MonopolyWelfare evaluates profit, rider surplus and driver surplus at the
// monopoly solution (d, s) for asymmetry a.
func MonopolyWelfare(a float64, sol Pair) Welfare {
	d, s := sol.Demand, sol.Supply
	return Welfare{
		Profit:        d - d*d - a*d*d/s - a*s*s,
		RiderSurplus:  a*d*d/(2*s) + d*d/2,
		DriverSurplus: 2 * a * s * s * s / (3 * d),
	}
}
