package cmd

import (
	_ "costrict-updater/cmd/metrics"
	_ "costrict-updater/cmd/pack"
	_ "costrict-updater/cmd/root"
	_ "costrict-updater/cmd/server"
	_ "costrict-updater/cmd/upgrade"
)
