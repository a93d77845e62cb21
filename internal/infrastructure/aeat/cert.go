// Carga de la credencial mutual-TLS del emisor: par PEM o archivo PKCS#12.

package aeat

import (
	"crypto/tls"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pkcs12"
)

// LoadIssuerCert carga el certificado cliente del emisor para autenticar la
// sesión TLS frente al WS AEAT. Acepta .p12/.pfx (PKCS#12) o PEM (certificado
// y llave por separado, o combinados en un solo archivo).
func LoadIssuerCert(certFile, keyFile string) (tls.Certificate, error) {
	if certFile == "" {
		return tls.Certificate{}, fmt.Errorf("emisor sin certificado configurado")
	}
	lower := strings.ToLower(certFile)
	if strings.HasSuffix(lower, ".p12") || strings.HasSuffix(lower, ".pfx") {
		return loadFromP12(certFile, keyFile)
	}
	if keyFile == "" {
		// Un solo archivo PEM puede contener cert+key.
		keyFile = certFile
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("cargar certificado PEM: %w", err)
	}
	return cert, nil
}

// loadFromP12 carga certificado y llave desde un .p12/.pfx. Para PKCS#12 el
// campo keyFile se reutiliza como contraseña del contenedor (vacío permitido).
func loadFromP12(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("leer p12: %w", err)
	}
	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decodificar p12: %w", err)
	}
	// pkcs12.Decode devuelve un solo certificado; para la AEAT basta la hoja.
	return tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  priv,
		Leaf:        cert,
	}, nil
}
