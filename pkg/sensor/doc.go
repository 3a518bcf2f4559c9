// Package sensor adapts start/stop driven hardware-style producers to the
// reference-counted topic model.
//
// A concrete sensor embeds *Base and implements Impl. Base starts the
// producer when the first listener arrives and stops it when the last one
// leaves, however many goroutines race to Start and Stop:
//
//	type Compass struct {
//		*sensor.Base
//		heading atomic.Value
//	}
//
//	func NewCompass() *Compass {
//		c := &Compass{}
//		c.Base = sensor.NewBase(c, topic.WithName("compass"))
//		return c
//	}
//
//	func (c *Compass) StartImpl() error { /* register with the device */ }
//	func (c *Compass) StopImpl() error  { /* unregister */ }
//
// The device callback stores the reading and calls c.NotifyListeners().
package sensor
