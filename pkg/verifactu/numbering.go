// Package verifactu: utilidades puras del protocolo Veri*Factu compartidas
// entre dominio e infraestructura.
package verifactu

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numDirective captura %n% o %n.W% (W = ancho de relleno con ceros).
var numDirective = regexp.MustCompile(`%n(?:\.(\d+))?%`)

// FormatNumber aplica la fórmula de numeración del emisor al número secuencial.
// Directivas soportadas:
//
//	%y%   año de emisión en 2 dígitos
//	%Y%   año de emisión en 4 dígitos
//	%n%   número secuencial tal cual
//	%n.W% número secuencial rellenado con ceros hasta W dígitos
//
// Ejemplo: FormatNumber("%y%/%n.8%", 1 ene 2025, 1) -> "25/00000001".
// El resultado es el NumSerieFactura: la identidad del registro en el cable.
func FormatNumber(formula string, dt time.Time, num uint) string {
	out := strings.ReplaceAll(formula, "%y%", dt.Format("06"))
	out = strings.ReplaceAll(out, "%Y%", dt.Format("2006"))
	return numDirective.ReplaceAllStringFunc(out, func(m string) string {
		groups := numDirective.FindStringSubmatch(m)
		if groups[1] == "" {
			return strconv.FormatUint(uint64(num), 10)
		}
		width, _ := strconv.Atoi(groups[1])
		return fmt.Sprintf("%0*d", width, num)
	})
}
