package entity

import "time"

// Issuer es el obligado a emitir (empresa): identidad fiscal, credencial
// mutual-TLS frente a la AEAT y ventana de espera impuesta por el servicio.
type Issuer struct {
	ID         int64
	Name       string
	VatID      string // NIF; se normaliza (alfanumérico, mayúsculas) al usarlo en el cable
	Address    string
	PostalCode string
	City       string
	State      string
	Country    string
	Email      string
	Phone      string
	Contact    string
	Formula    string // fórmula de numeración de facturas (ej. "%y%/%n.8%")
	FormulaR   string // fórmula para rectificativas (ej. "R-%y%/%n.8%")
	FirstNum   uint
	CertFile   string // certificado cliente (PEM o PKCS#12)
	KeyFile    string // llave privada (PEM; vacío si CertFile es .p12)
	NextSend   *time.Time // ventana de espera: no enviar antes de este instante
	Test       bool       // true = entorno de pruebas AEAT
	Created    time.Time
}

// URLAeat devuelve la base del portal AEAT según el entorno del emisor
// (se usa para construir la URL de validación QR).
func (i *Issuer) URLAeat() string {
	if i.Test {
		return "https://prewww2.aeat.es/"
	}
	return "https://www2.agenciatributaria.gob.es/"
}

// CanSend indica si la ventana de espera ya venció (o nunca se fijó).
func (i *Issuer) CanSend(now time.Time) bool {
	return i.NextSend == nil || !now.Before(*i.NextSend)
}
