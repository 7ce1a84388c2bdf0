// README: Delivery fee rate definition.
package pricing

type Rate struct {
	BaseFare int64
	PerKm    int64
	Currency string
}
