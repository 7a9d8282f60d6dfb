package materialkey

import (
	"strconv"
	"strings"
)

type property interface {
	Name() string
	bitWidth() uint32
	setOffset(offset uint32)
	appendString(sb *strings.Builder, k *Key)
	parse(value string, k *Key) bool
}

type base struct {
	name   string
	offset uint32
}

func (b *base) Name() string {
	return b.name
}

func (b *base) setOffset(offset uint32) {
	b.offset = offset
}

func (b *base) word() uint32 {
	return b.offset / 32
}

func (b *base) shift() uint32 {
	return b.offset % 32
}

/** @brief A single bit of the key. A cleared flag is omitted from the string form. */
type Boolean struct {
	base
}

func (p *Boolean) bitWidth() uint32 { return 1 }

func (p *Boolean) Get(k *Key) bool {
	return k.data[p.word()]&(1<<p.shift()) != 0
}

func (p *Boolean) Set(k *Key, on bool) {
	if on {
		k.data[p.word()] |= 1 << p.shift()
	} else {
		k.data[p.word()] &^= 1 << p.shift()
	}
}

func (p *Boolean) appendString(sb *strings.Builder, k *Key) {
	if p.Get(k) {
		sb.WriteString(p.name)
		sb.WriteString("=true")
	}
}

func (p *Boolean) parse(value string, k *Key) bool {
	switch value {
	case "true":
		p.Set(k, true)
	case "false":
		p.Set(k, false)
	default:
		return false
	}
	return true
}

/** @brief An unsigned field of a fixed bit width; wider values are truncated. */
type Unsigned struct {
	base
	width uint32
}

func (p *Unsigned) bitWidth() uint32 { return p.width }

func (p *Unsigned) mask() uint32 {
	return (1 << p.width) - 1
}

func (p *Unsigned) Get(k *Key) uint32 {
	return (k.data[p.word()] >> p.shift()) & p.mask()
}

func (p *Unsigned) Set(k *Key, value uint32) {
	w := p.word()
	k.data[w] &^= p.mask() << p.shift()
	k.data[w] |= (value & p.mask()) << p.shift()
}

func (p *Unsigned) appendString(sb *strings.Builder, k *Key) {
	sb.WriteString(p.name)
	sb.WriteByte('=')
	sb.WriteString(strconv.FormatUint(uint64(p.Get(k)), 10))
}

func (p *Unsigned) parse(value string, k *Key) bool {
	v, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return false
	}
	p.Set(k, uint32(v))
	return true
}

type Channel uint32

const (
	ChannelR Channel = iota
	ChannelG
	ChannelB
	ChannelA
)

const channelNames = "RGBA"

func (c Channel) String() string {
	return channelNames[c&3 : c&3+1]
}

/** @brief Which texture channel a single-channel map reads from. */
type TextureChannel struct {
	Unsigned
}

func (p *TextureChannel) Channel(k *Key) Channel {
	return Channel(p.Get(k))
}

func (p *TextureChannel) SetChannel(k *Key, c Channel) {
	p.Set(k, uint32(c))
}

func (p *TextureChannel) appendString(sb *strings.Builder, k *Key) {
	sb.WriteString(p.name)
	sb.WriteByte('=')
	sb.WriteString(p.Channel(k).String())
}

func (p *TextureChannel) parse(value string, k *Key) bool {
	i := strings.Index(channelNames, value)
	if len(value) != 1 || i < 0 {
		return false
	}
	p.SetChannel(k, Channel(i))
	return true
}

type ImageMap int

const (
	DiffuseMap ImageMap = iota
	EmissiveMap
	SpecularMap
	BaseColorMap
	BumpMap
	NormalMap
	OpacityMap
	RoughnessMap
	ImageMapCount
)

var imageMapNames = [ImageMapCount]string{
	"diffuseMap",
	"emissiveMap",
	"specularMap",
	"baseColorMap",
	"bumpMap",
	"normalMap",
	"opacityMap",
	"roughnessMap",
}

type SingleChannelImage int

const (
	OpacityChannel SingleChannelImage = iota
	RoughnessChannel
	MetalnessChannel
	OcclusionChannel
	SingleChannelImageCount
)

var channelPropertyNames = [SingleChannelImageCount]string{
	"opacityMap_channel",
	"roughnessMap_channel",
	"metalnessMap_channel",
	"occlusionMap_channel",
}

/**
 * @brief The properties of the default material shader key. Offsets are
 * tallied in declaration order; a property never straddles two words.
 */
type Properties struct {
	HasLighting         Boolean
	HasIbl              Boolean
	LightCount          Unsigned
	SpecularEnabled     Boolean
	VertexColorsEnabled Boolean
	ImageMaps           [ImageMapCount]Boolean
	TextureChannels     [SingleChannelImageCount]TextureChannel
	AlphaMode           Unsigned
	DepthPass           Boolean
	Skinning            Boolean

	all []property
}

func NewProperties() *Properties {
	p := &Properties{
		HasLighting:         Boolean{base{name: "hasLighting"}},
		HasIbl:              Boolean{base{name: "hasIbl"}},
		LightCount:          Unsigned{base: base{name: "lightCount"}, width: 4},
		SpecularEnabled:     Boolean{base{name: "specularEnabled"}},
		VertexColorsEnabled: Boolean{base{name: "vertexColorsEnabled"}},
		AlphaMode:           Unsigned{base: base{name: "alphaMode"}, width: 2},
		DepthPass:           Boolean{base{name: "depthPass"}},
		Skinning:            Boolean{base{name: "skinning"}},
	}
	for i := range p.ImageMaps {
		p.ImageMaps[i].name = imageMapNames[i]
	}
	for i := range p.TextureChannels {
		p.TextureChannels[i] = TextureChannel{Unsigned{base: base{name: channelPropertyNames[i]}, width: 2}}
	}

	p.all = append(p.all, &p.HasLighting, &p.HasIbl, &p.LightCount, &p.SpecularEnabled, &p.VertexColorsEnabled)
	for i := range p.ImageMaps {
		p.all = append(p.all, &p.ImageMaps[i])
	}
	for i := range p.TextureChannels {
		p.all = append(p.all, &p.TextureChannels[i])
	}
	p.all = append(p.all, &p.AlphaMode, &p.DepthPass, &p.Skinning)

	var offset uint32
	for _, prop := range p.all {
		if bit := offset % 32; bit+prop.bitWidth() > 31 {
			offset += 32 - bit
		}
		prop.setOffset(offset)
		offset += prop.bitWidth()
	}
	if offset > DataWords*32 {
		panic("material key properties do not fit the key")
	}
	return p
}

func (p *Properties) lookup(name string) property {
	for _, prop := range p.all {
		if prop.Name() == name {
			return prop
		}
	}
	return nil
}
