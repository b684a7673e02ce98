package layers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/muchq/tensornet/errs"
	"github.com/muchq/tensornet/tensor"
)

// Layout descriptor format, one layer per line:
//
//	<kind>: key = value; key = value;
//
// Shapes are written (W, H, D); the parser also accepts the shorter (W, H)
// form with depth defaulting to 1. Enum values are identifiers. Fields left
// out fall back to the per-kind defaults.

func activationName(k ActivationKind) string {
	switch k {
	case ActivationLinear:
		return "linear"
	case ActivationSigmoid:
		return "sigmoid"
	case ActivationTanh:
		return "tanh"
	case ActivationReLU:
		return "relu"
	case ActivationLeakyReLU:
		return "leaky_relu"
	case ActivationSoftmax:
		return "softmax"
	default:
		return "null"
	}
}

func activationFromName(name string) (ActivationKind, bool) {
	switch name {
	case "linear":
		return ActivationLinear, true
	case "sigmoid":
		return ActivationSigmoid, true
	case "tanh":
		return ActivationTanh, true
	case "relu":
		return ActivationReLU, true
	case "leaky_relu":
		return ActivationLeakyReLU, true
	case "softmax":
		return ActivationSoftmax, true
	default:
		return ActivationNull, false
	}
}

func poolingName(k PoolingKind) string {
	switch k {
	case PoolingMax:
		return "max"
	case PoolingAvg:
		return "avg"
	default:
		return "null"
	}
}

// DescSave encodes a descriptor as one layout line.
func DescSave(desc *Desc) string {
	var sb strings.Builder
	sb.WriteString(desc.Kind.Name())
	sb.WriteString(": ")

	shape := func(s tensor.Shape) string {
		return fmt.Sprintf("(%d, %d, %d)", s.Width, s.Height, s.Depth)
	}

	switch desc.Kind {
	case Input, Reshape:
		fmt.Fprintf(&sb, "shape = %s; ", shape(desc.Shape))
	case Dense:
		fmt.Fprintf(&sb, "size = %d; ", desc.Size)
	case Activation:
		fmt.Fprintf(&sb, "type = %s; ", activationName(desc.Activation))
	case Dropout:
		fmt.Fprintf(&sb, "keep_rate = %g; ", desc.KeepRate)
	case Pooling2D:
		fmt.Fprintf(&sb, "pool_size = (%d, %d); ", desc.PoolSize.Width, desc.PoolSize.Height)
		fmt.Fprintf(&sb, "type = %s; ", poolingName(desc.Pooling))
	case Conv2D:
		fmt.Fprintf(&sb, "num_filters = %d; ", desc.NumFilters)
		fmt.Fprintf(&sb, "kernel_size = %d; ", desc.KernelSize)
		fmt.Fprintf(&sb, "padding = %t; ", desc.Padding)
		fmt.Fprintf(&sb, "stride = %d; ", desc.Stride)
	case Norm:
		fmt.Fprintf(&sb, "epsilon = %g; ", desc.Epsilon)
	}

	return sb.String()
}

type parser struct {
	str string
	pos int
}

func (p *parser) eatWhitespace() {
	for p.pos < len(p.str) {
		switch p.str[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) matchChar(c byte) bool {
	p.eatWhitespace()
	if p.pos < len(p.str) && p.str[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func isIdentChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}

func (p *parser) parseIdent() string {
	p.eatWhitespace()
	start := p.pos
	for p.pos < len(p.str) && isIdentChar(p.str[p.pos]) {
		p.pos++
	}
	return p.str[start:p.pos]
}

func (p *parser) parseUint32() uint32 {
	p.eatWhitespace()
	start := p.pos
	for p.pos < len(p.str) && p.str[p.pos] >= '0' && p.str[p.pos] <= '9' {
		p.pos++
	}
	out, _ := strconv.ParseUint(p.str[start:p.pos], 10, 32)
	return uint32(out)
}

func (p *parser) parseFloat32() float32 {
	p.eatWhitespace()
	start := p.pos
	for p.pos < len(p.str) {
		c := p.str[p.pos]
		if c >= '0' && c <= '9' || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E' {
			p.pos++
		} else {
			break
		}
	}
	out, _ := strconv.ParseFloat(p.str[start:p.pos], 32)
	return float32(out)
}

func (p *parser) parseBool() bool {
	p.eatWhitespace()
	if strings.HasPrefix(p.str[p.pos:], "true") {
		p.pos += 4
		return true
	}
	if strings.HasPrefix(p.str[p.pos:], "false") {
		p.pos += 5
	}
	return false
}

func (p *parser) parseShape(out *tensor.Shape) bool {
	if !p.matchChar('(') {
		return false
	}
	out.Width = p.parseUint32()
	if !p.matchChar(',') {
		return false
	}
	out.Height = p.parseUint32()

	if p.matchChar(',') {
		out.Depth = p.parseUint32()
	} else {
		out.Depth = 1
	}

	// Optional trailing comma.
	p.matchChar(',')

	return p.matchChar(')')
}

// skipValue consumes a value it does not understand, up to the field
// separator.
func (p *parser) skipValue() {
	for p.pos < len(p.str) && p.str[p.pos] != ';' {
		p.pos++
	}
}

// DescLoad parses one layout line into a descriptor, filling unset fields
// with defaults. Returns false when the line has no kind header.
func DescLoad(out *Desc, str string) bool {
	colon := strings.IndexByte(str, ':')
	if colon < 0 {
		errs.Report(errs.Parse, "cannot load layer desc: missing kind header")
		return false
	}

	kindName := strings.TrimSpace(str[:colon])
	kind := KindFromName(kindName)
	if kind == Null && kindName != "null" {
		errs.Reportf(errs.Parse, "cannot load layer desc: unknown kind %q", kindName)
		return false
	}

	*out = ApplyDefault(Desc{Kind: kind})

	p := parser{str: str, pos: colon + 1}
	for p.pos < len(p.str) {
		key := p.parseIdent()
		if key == "" {
			break
		}
		if !p.matchChar('=') {
			if p.matchChar(';') {
				continue
			}
			if p.pos >= len(p.str) {
				break
			}
			p.pos++
			continue
		}

		if !parseField(out, key, &p) {
			errs.Reportf(errs.Parse, "skipping unknown layer desc field %q for %s", key, kind.Name())
			p.skipValue()
		}

		p.matchChar(';')
	}

	return true
}

func parseField(out *Desc, key string, p *parser) bool {
	switch out.Kind {
	case Input, Reshape:
		if key == "shape" {
			return p.parseShape(&out.Shape)
		}
	case Dense:
		if key == "size" {
			out.Size = p.parseUint32()
			return true
		}
	case Activation:
		if key == "type" {
			kind, ok := activationFromName(p.parseIdent())
			if ok {
				out.Activation = kind
			}
			return ok
		}
	case Dropout:
		if key == "keep_rate" {
			out.KeepRate = p.parseFloat32()
			return true
		}
	case Pooling2D:
		switch key {
		case "pool_size":
			return p.parseShape(&out.PoolSize)
		case "type":
			switch p.parseIdent() {
			case "max":
				out.Pooling = PoolingMax
			case "avg":
				out.Pooling = PoolingAvg
			default:
				return false
			}
			return true
		}
	case Conv2D:
		switch key {
		case "num_filters":
			out.NumFilters = p.parseUint32()
			return true
		case "kernel_size":
			out.KernelSize = p.parseUint32()
			return true
		case "padding":
			out.Padding = p.parseBool()
			return true
		case "stride":
			out.Stride = p.parseUint32()
			return true
		}
	case Norm:
		if key == "epsilon" {
			out.Epsilon = p.parseFloat32()
			return true
		}
	}
	return false
}
