package domain

// Side represents the direction of a position.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Action is the instruction carried by a signal (BUY, SELL or EXIT).
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
	Exit Action = "EXIT"
)

// ExitReason indicates why a position was closed.
type ExitReason string

const (
	ExitStopLoss        ExitReason = "STOP_LOSS"
	ExitTakeProfit      ExitReason = "TAKE_PROFIT"
	ExitForcedSquareOff ExitReason = "FORCED_SQUARE_OFF"
	ExitUnknown         ExitReason = "UNKNOWN"
)
