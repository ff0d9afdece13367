package vtec

// hazardPriority fixes the upgrade ordering between hazard classes in the
// same zone. A terminating record becomes UPG rather than CAN when a
// higher-priority phen.sig begins exactly as it ends. Ties in significance
// class are broken by the explicit value.
var hazardPriority = map[string]int{
	"FF.W": 100, // flash flood warning
	"FA.W": 90,  // areal flood warning
	"FL.W": 80,  // river flood warning

	"FF.A": 60, // flash flood watch
	"FA.A": 55,
	"FL.A": 50,

	"FA.Y": 30, // advisories
	"FL.Y": 25,

	"HY.S": 10, // hydrologic statement
}

// priority returns the upgrade priority for phen.sig; unknown pairs rank
// by significance class alone so novel phenomena still order sensibly.
func priority(phenSig string) int {
	if p, ok := hazardPriority[phenSig]; ok {
		return p
	}
	if len(phenSig) == 4 {
		switch phenSig[3] {
		case 'W':
			return 70
		case 'A':
			return 45
		case 'Y':
			return 20
		}
	}
	return 0
}

// upgrades reports whether a hazard of newPhenSig replacing oldPhenSig in
// the same zone constitutes an upgrade.
func upgrades(newPhenSig, oldPhenSig string) bool {
	return priority(newPhenSig) > priority(oldPhenSig)
}
