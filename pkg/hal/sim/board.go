package sim

// Board is a simulated blue pill style board with one LED, one timer and
// two serial ports.
type Board struct {
	LED     *Pin
	Timer   *Timer
	Serial2 *UART
	Serial3 *UART
}

// NewBoard creates a Board.
func NewBoard() *Board {
	return &Board{
		LED:     NewPin("PB12"),
		Timer:   NewTimer("TIM1"),
		Serial2: NewUART("USART2"),
		Serial3: NewUART("USART3"),
	}
}
