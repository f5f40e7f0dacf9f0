// internal/discovery/usb/database.go
package usb

import (
	"github.com/google/gousb"

	"device-link/internal/model"
)

// BoardDatabase contains known USB IDs of development boards and the
// USB-serial bridges they ship with
type BoardDatabase struct {
	vendors map[gousb.ID]*VendorInfo
}

// VendorInfo contains vendor-specific information
type VendorInfo struct {
	Name     string
	products map[gousb.ID]*ProductInfo
}

// ProductInfo contains product-specific information
type ProductInfo struct {
	Name        string
	BoardFamily model.BoardFamily
	Confidence  float64
}

// GetProductInfo looks a product up within a vendor
func (v *VendorInfo) GetProductInfo(product gousb.ID) *ProductInfo {
	return v.products[product]
}

// NewBoardDatabase creates and initializes the board database
func NewBoardDatabase() *BoardDatabase {
	db := &BoardDatabase{
		vendors: make(map[gousb.ID]*VendorInfo),
	}
	db.initializeDatabase()
	return db
}

// IsKnownVendor reports whether the vendor appears in the database
func (db *BoardDatabase) IsKnownVendor(vendor gousb.ID) bool {
	_, exists := db.vendors[vendor]
	return exists
}

// GetVendorInfo looks a vendor up
func (db *BoardDatabase) GetVendorInfo(vendor gousb.ID) *VendorInfo {
	return db.vendors[vendor]
}

// initializeDatabase populates the known boards database
func (db *BoardDatabase) initializeDatabase() {
	// Espressif (0x303A): native USB on S2/S3/C3 chips
	espressif := &VendorInfo{
		Name:     "Espressif Systems",
		products: make(map[gousb.ID]*ProductInfo),
	}
	espressif.products[0x1001] = &ProductInfo{
		Name:        "ESP32-S3",
		BoardFamily: model.BoardFamilyESP32,
		Confidence:  0.95,
	}
	espressif.products[0x0002] = &ProductInfo{
		Name:        "ESP32-S2",
		BoardFamily: model.BoardFamilyESP32,
		Confidence:  0.95,
	}
	espressif.products[0x1002] = &ProductInfo{
		Name:        "ESP32-C3",
		BoardFamily: model.BoardFamilyESP32,
		Confidence:  0.95,
	}
	db.vendors[0x303A] = espressif

	// Raspberry Pi (0x2E8A)
	raspberryPi := &VendorInfo{
		Name:     "Raspberry Pi Ltd",
		products: make(map[gousb.ID]*ProductInfo),
	}
	raspberryPi.products[0x0005] = &ProductInfo{
		Name:        "Pico (RP2040)",
		BoardFamily: model.BoardFamilyRP2040,
		Confidence:  0.95,
	}
	raspberryPi.products[0x000A] = &ProductInfo{
		Name:        "Pico W (RP2040)",
		BoardFamily: model.BoardFamilyRP2040,
		Confidence:  0.95,
	}
	raspberryPi.products[0x0003] = &ProductInfo{
		Name:        "Pico (BOOTSEL mode)",
		BoardFamily: model.BoardFamilyRP2040,
		Confidence:  0.9,
	}
	db.vendors[0x2E8A] = raspberryPi

	// Arduino (0x2341)
	arduino := &VendorInfo{
		Name:     "Arduino SA",
		products: make(map[gousb.ID]*ProductInfo),
	}
	arduino.products[0x0043] = &ProductInfo{
		Name:        "Uno R3",
		BoardFamily: model.BoardFamilyAVR,
		Confidence:  0.95,
	}
	arduino.products[0x0042] = &ProductInfo{
		Name:        "Mega 2560",
		BoardFamily: model.BoardFamilyAVR,
		Confidence:  0.95,
	}
	arduino.products[0x8057] = &ProductInfo{
		Name:        "Nano 33 IoT",
		BoardFamily: model.BoardFamilyGeneric,
		Confidence:  0.9,
	}
	db.vendors[0x2341] = arduino

	// STMicroelectronics (0x0483)
	stm := &VendorInfo{
		Name:     "STMicroelectronics",
		products: make(map[gousb.ID]*ProductInfo),
	}
	stm.products[0x5740] = &ProductInfo{
		Name:        "STM32 Virtual COM",
		BoardFamily: model.BoardFamilySTM32,
		Confidence:  0.9,
	}
	stm.products[0x3748] = &ProductInfo{
		Name:        "ST-LINK/V2",
		BoardFamily: model.BoardFamilySTM32,
		Confidence:  0.85,
	}
	db.vendors[0x0483] = stm

	// Silicon Labs (0x10C4): CP210x bridges, usually ESP32 devkits
	siliconLabs := &VendorInfo{
		Name:     "Silicon Labs",
		products: make(map[gousb.ID]*ProductInfo),
	}
	siliconLabs.products[0xEA60] = &ProductInfo{
		Name:        "CP210x UART Bridge",
		BoardFamily: model.BoardFamilyESP32,
		Confidence:  0.7,
	}
	db.vendors[0x10C4] = siliconLabs

	// WCH (0x1A86): CH340 bridges, ESP8266 and Arduino clones
	wch := &VendorInfo{
		Name:     "QinHeng Electronics",
		products: make(map[gousb.ID]*ProductInfo),
	}
	wch.products[0x7523] = &ProductInfo{
		Name:        "CH340 UART Bridge",
		BoardFamily: model.BoardFamilyESP8266,
		Confidence:  0.5,
	}
	wch.products[0x55D4] = &ProductInfo{
		Name:        "CH9102 UART Bridge",
		BoardFamily: model.BoardFamilyESP32,
		Confidence:  0.6,
	}
	db.vendors[0x1A86] = wch
}
