package atr

import "fmt"

// Standard is the SS byte of a storage-card AID.
type Standard byte

const (
	StandardISO14443A3 Standard = 0x03
	StandardISO14443B3 Standard = 0x07
	StandardISO15693_3 Standard = 0x0B
	StandardFeliCa     Standard = 0x11
)

var standardNames = map[Standard]string{
	StandardISO14443A3: "ISO 14443 A part 3",
	StandardISO14443B3: "ISO 14443 B part 3",
	StandardISO15693_3: "ISO 15693 part 3",
	StandardFeliCa:     "FeliCa",
}

func (s Standard) String() string {
	if name, ok := standardNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Standard(0x%02X)", byte(s))
}

// CardName is the NN NN card type of a storage-card AID.
type CardName uint16

const (
	CardMifareClassic1K   CardName = 0x0001
	CardMifareClassic4K   CardName = 0x0002
	CardMifareUltralight  CardName = 0x0003
	CardMifareMini        CardName = 0x0026
	CardMifareUltralightC CardName = 0x003A
	CardTopaz             CardName = 0xF004
	CardFeliCa            CardName = 0xF011
)

var cardNames = map[CardName]string{
	CardMifareClassic1K:   "MIFARE Classic 1K",
	CardMifareClassic4K:   "MIFARE Classic 4K",
	CardMifareUltralight:  "MIFARE Ultralight",
	CardMifareMini:        "MIFARE Mini",
	CardMifareUltralightC: "MIFARE Ultralight C",
	CardTopaz:             "Topaz/Jewel",
	CardFeliCa:            "FeliCa",
}

func (n CardName) String() string {
	if name, ok := cardNames[n]; ok {
		return name
	}
	return fmt.Sprintf("CardName(0x%04X)", uint16(n))
}
