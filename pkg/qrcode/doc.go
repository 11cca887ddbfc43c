// Package qrcode renders subscription codes as PNG QR codes for printed
// member cards and for the kiosk's "show my code" screen.
//
//	img, err := qrcode.PNG(sub.Code, 320)
//
// Cache keeps recently rendered images in memory:
//
//	cards := qrcode.NewCache(qrcode.DefaultCacheCapacity)
//	img, err := cards.PNG(sub.Code, 320)
package qrcode
