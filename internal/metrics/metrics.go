package metrics

import "expvar"

var (
	FeederCycles      = expvar.NewInt("feeder_cycles")
	FeederSubmissions = expvar.NewInt("feeder_submissions")
	FeederSkips       = expvar.NewInt("feeder_skips")
	FeederErrors      = expvar.NewInt("feeder_errors")
	TxConfirmed       = expvar.NewInt("tx_confirmed")
	TxFailed          = expvar.NewInt("tx_failed")
)
