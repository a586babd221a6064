package mining

import "astromine-go/internal/models"

// Simulate draws units mineral drops for one mining action.
//
// A first draw below the tool's rare chance yields gold or platinum, split
// evenly across that band. Otherwise a second draw picks iron, nickel or
// carbon by the asteroid's cumulative composition. Gold and platinum are
// never reached through the common branch.
func Simulate(roller models.Roller, spec models.ToolSpec, composition models.Composition, units int64) models.Inventory {
	mined := models.Inventory{}.Clone()

	iron := composition.Fraction(models.MineralIron)
	ironNickel := iron + composition.Fraction(models.MineralNickel)

	for i := int64(0); i < units; i++ {
		r := roller.Float64()
		if r < spec.RareChance {
			if r < spec.RareChance/2 {
				mined[models.MineralGold]++
			} else {
				mined[models.MineralPlatinum]++
			}
			continue
		}

		c := roller.Float64()
		switch {
		case c < iron:
			mined[models.MineralIron]++
		case c < ironNickel:
			mined[models.MineralNickel]++
		default:
			mined[models.MineralCarbon]++
		}
	}
	return mined
}
