package script

import "fmt"

// OPCODE 操作码标签。与脚本中的单字节操作码一一对应，但 OP_0/OP_FALSE、OP_1/OP_TRUE
// 为两对别名，编码相同但标签不同；OP_PUSH 覆盖 0x01~0x4b 全部直接压栈操作码。
type OPCODE uint8

const (
	OP_0 OPCODE = iota
	OP_FALSE
	OP_PUSH
	OP_PUSHDATA1
	OP_PUSHDATA2
	OP_PUSHDATA4
	OP_1NEGATE
	OP_RESERVED
	OP_1
	OP_TRUE
	OP_2
	OP_3
	OP_4
	OP_5
	OP_6
	OP_7
	OP_8
	OP_9
	OP_10
	OP_11
	OP_12
	OP_13
	OP_14
	OP_15
	OP_16
	OP_NOP
	OP_VER
	OP_IF
	OP_NOTIF
	OP_VERIF
	OP_VERNOTIF
	OP_ELSE
	OP_ENDIF
	OP_VERIFY
	OP_RETURN
	OP_TOALTSTACK
	OP_FROMALTSTACK
	OP_2DROP
	OP_2DUP
	OP_3DUP
	OP_2OVER
	OP_2ROT
	OP_2SWAP
	OP_IFDUP
	OP_DEPTH
	OP_DROP
	OP_DUP
	OP_NIP
	OP_OVER
	OP_PICK
	OP_ROLL
	OP_ROT
	OP_SWAP
	OP_TUCK
	OP_CAT
	OP_SUBSTR
	OP_LEFT
	OP_RIGHT
	OP_SIZE
	OP_INVERT
	OP_AND
	OP_OR
	OP_XOR
	OP_EQUAL
	OP_EQUALVERIFY
	OP_1ADD
	OP_1SUB
	OP_2MUL
	OP_2DIV
	OP_NEGATE
	OP_ABS
	OP_NOT
	OP_0NOTEQUAL
	OP_ADD
	OP_SUB
	OP_MUL
	OP_DIV
	OP_MOD
	OP_LSHIFT
	OP_RSHIFT
	OP_BOOLAND
	OP_BOOLOR
	OP_NUMEQUAL
	OP_NUMEQUALVERIFY
	OP_NUMNOTEQUAL
	OP_LESSTHAN
	OP_GREATERTHAN
	OP_LESSTHANOREQUAL
	OP_GREATERTHANOREQUAL
	OP_MIN
	OP_MAX
	OP_WITHIN
	OP_RIPEMD160
	OP_SHA1
	OP_SHA256
	OP_HASH160
	OP_HASH256
	OP_CODESEPARATOR
	OP_CHECKSIG
	OP_CHECKSIGVERIFY
	OP_CHECKMULTISIG
	OP_CHECKMULTISIGVERIFY
	OP_CHECKLOCKTIMEVERIFY
	OP_CHECKSEQUENCEVERIFY

	numOpcodes
)

// 字节值
const (
	opcodePushMax      = 0x4b // 直接压栈操作码的最大值(75)
	opcodeReserved1    = 0x89
	opcodeReserved2    = 0x8a
	opcodeNop1         = 0xb0
	opcodeNop4         = 0xb3
	opcodeNop10        = 0xb9
	opcodeUnrecognized = 0xba // 从此往后均为无法识别的操作码
)

type opcodeInfo struct {
	name  string
	value byte
}

// opcodeArray 标签 => 名称、字节值
var opcodeArray = [numOpcodes]opcodeInfo{
	OP_0:                   {name: "OP_0", value: 0x00},
	OP_FALSE:               {name: "OP_FALSE", value: 0x00},
	OP_PUSH:                {name: "OP_PUSH", value: 0x01},
	OP_PUSHDATA1:           {name: "OP_PUSHDATA1", value: 0x4c},
	OP_PUSHDATA2:           {name: "OP_PUSHDATA2", value: 0x4d},
	OP_PUSHDATA4:           {name: "OP_PUSHDATA4", value: 0x4e},
	OP_1NEGATE:             {name: "OP_1NEGATE", value: 0x4f},
	OP_RESERVED:            {name: "OP_RESERVED", value: 0x50},
	OP_1:                   {name: "OP_1", value: 0x51},
	OP_TRUE:                {name: "OP_TRUE", value: 0x51},
	OP_2:                   {name: "OP_2", value: 0x52},
	OP_3:                   {name: "OP_3", value: 0x53},
	OP_4:                   {name: "OP_4", value: 0x54},
	OP_5:                   {name: "OP_5", value: 0x55},
	OP_6:                   {name: "OP_6", value: 0x56},
	OP_7:                   {name: "OP_7", value: 0x57},
	OP_8:                   {name: "OP_8", value: 0x58},
	OP_9:                   {name: "OP_9", value: 0x59},
	OP_10:                  {name: "OP_10", value: 0x5a},
	OP_11:                  {name: "OP_11", value: 0x5b},
	OP_12:                  {name: "OP_12", value: 0x5c},
	OP_13:                  {name: "OP_13", value: 0x5d},
	OP_14:                  {name: "OP_14", value: 0x5e},
	OP_15:                  {name: "OP_15", value: 0x5f},
	OP_16:                  {name: "OP_16", value: 0x60},
	OP_NOP:                 {name: "OP_NOP", value: 0x61},
	OP_VER:                 {name: "OP_VER", value: 0x62},
	OP_IF:                  {name: "OP_IF", value: 0x63},
	OP_NOTIF:               {name: "OP_NOTIF", value: 0x64},
	OP_VERIF:               {name: "OP_VERIF", value: 0x65},
	OP_VERNOTIF:            {name: "OP_VERNOTIF", value: 0x66},
	OP_ELSE:                {name: "OP_ELSE", value: 0x67},
	OP_ENDIF:               {name: "OP_ENDIF", value: 0x68},
	OP_VERIFY:              {name: "OP_VERIFY", value: 0x69},
	OP_RETURN:              {name: "OP_RETURN", value: 0x6a},
	OP_TOALTSTACK:          {name: "OP_TOALTSTACK", value: 0x6b},
	OP_FROMALTSTACK:        {name: "OP_FROMALTSTACK", value: 0x6c},
	OP_2DROP:               {name: "OP_2DROP", value: 0x6d},
	OP_2DUP:                {name: "OP_2DUP", value: 0x6e},
	OP_3DUP:                {name: "OP_3DUP", value: 0x6f},
	OP_2OVER:               {name: "OP_2OVER", value: 0x70},
	OP_2ROT:                {name: "OP_2ROT", value: 0x71},
	OP_2SWAP:               {name: "OP_2SWAP", value: 0x72},
	OP_IFDUP:               {name: "OP_IFDUP", value: 0x73},
	OP_DEPTH:               {name: "OP_DEPTH", value: 0x74},
	OP_DROP:                {name: "OP_DROP", value: 0x75},
	OP_DUP:                 {name: "OP_DUP", value: 0x76},
	OP_NIP:                 {name: "OP_NIP", value: 0x77},
	OP_OVER:                {name: "OP_OVER", value: 0x78},
	OP_PICK:                {name: "OP_PICK", value: 0x79},
	OP_ROLL:                {name: "OP_ROLL", value: 0x7a},
	OP_ROT:                 {name: "OP_ROT", value: 0x7b},
	OP_SWAP:                {name: "OP_SWAP", value: 0x7c},
	OP_TUCK:                {name: "OP_TUCK", value: 0x7d},
	OP_CAT:                 {name: "OP_CAT", value: 0x7e},
	OP_SUBSTR:              {name: "OP_SUBSTR", value: 0x7f},
	OP_LEFT:                {name: "OP_LEFT", value: 0x80},
	OP_RIGHT:               {name: "OP_RIGHT", value: 0x81},
	OP_SIZE:                {name: "OP_SIZE", value: 0x82},
	OP_INVERT:              {name: "OP_INVERT", value: 0x83},
	OP_AND:                 {name: "OP_AND", value: 0x84},
	OP_OR:                  {name: "OP_OR", value: 0x85},
	OP_XOR:                 {name: "OP_XOR", value: 0x86},
	OP_EQUAL:               {name: "OP_EQUAL", value: 0x87},
	OP_EQUALVERIFY:         {name: "OP_EQUALVERIFY", value: 0x88},
	OP_1ADD:                {name: "OP_1ADD", value: 0x8b},
	OP_1SUB:                {name: "OP_1SUB", value: 0x8c},
	OP_2MUL:                {name: "OP_2MUL", value: 0x8d},
	OP_2DIV:                {name: "OP_2DIV", value: 0x8e},
	OP_NEGATE:              {name: "OP_NEGATE", value: 0x8f},
	OP_ABS:                 {name: "OP_ABS", value: 0x90},
	OP_NOT:                 {name: "OP_NOT", value: 0x91},
	OP_0NOTEQUAL:           {name: "OP_0NOTEQUAL", value: 0x92},
	OP_ADD:                 {name: "OP_ADD", value: 0x93},
	OP_SUB:                 {name: "OP_SUB", value: 0x94},
	OP_MUL:                 {name: "OP_MUL", value: 0x95},
	OP_DIV:                 {name: "OP_DIV", value: 0x96},
	OP_MOD:                 {name: "OP_MOD", value: 0x97},
	OP_LSHIFT:              {name: "OP_LSHIFT", value: 0x98},
	OP_RSHIFT:              {name: "OP_RSHIFT", value: 0x99},
	OP_BOOLAND:             {name: "OP_BOOLAND", value: 0x9a},
	OP_BOOLOR:              {name: "OP_BOOLOR", value: 0x9b},
	OP_NUMEQUAL:            {name: "OP_NUMEQUAL", value: 0x9c},
	OP_NUMEQUALVERIFY:      {name: "OP_NUMEQUALVERIFY", value: 0x9d},
	OP_NUMNOTEQUAL:         {name: "OP_NUMNOTEQUAL", value: 0x9e},
	OP_LESSTHAN:            {name: "OP_LESSTHAN", value: 0x9f},
	OP_GREATERTHAN:         {name: "OP_GREATERTHAN", value: 0xa0},
	OP_LESSTHANOREQUAL:     {name: "OP_LESSTHANOREQUAL", value: 0xa1},
	OP_GREATERTHANOREQUAL:  {name: "OP_GREATERTHANOREQUAL", value: 0xa2},
	OP_MIN:                 {name: "OP_MIN", value: 0xa3},
	OP_MAX:                 {name: "OP_MAX", value: 0xa4},
	OP_WITHIN:              {name: "OP_WITHIN", value: 0xa5},
	OP_RIPEMD160:           {name: "OP_RIPEMD160", value: 0xa6},
	OP_SHA1:                {name: "OP_SHA1", value: 0xa7},
	OP_SHA256:              {name: "OP_SHA256", value: 0xa8},
	OP_HASH160:             {name: "OP_HASH160", value: 0xa9},
	OP_HASH256:             {name: "OP_HASH256", value: 0xaa},
	OP_CODESEPARATOR:       {name: "OP_CODESEPARATOR", value: 0xab},
	OP_CHECKSIG:            {name: "OP_CHECKSIG", value: 0xac},
	OP_CHECKSIGVERIFY:      {name: "OP_CHECKSIGVERIFY", value: 0xad},
	OP_CHECKMULTISIG:       {name: "OP_CHECKMULTISIG", value: 0xae},
	OP_CHECKMULTISIGVERIFY: {name: "OP_CHECKMULTISIGVERIFY", value: 0xaf},
	OP_CHECKLOCKTIMEVERIFY: {name: "OP_CHECKLOCKTIMEVERIFY", value: 0xb1},
	OP_CHECKSEQUENCEVERIFY: {name: "OP_CHECKSEQUENCEVERIFY", value: 0xb2},
}

var (
	// opcodeByValue 字节值 => 标签，仅当 validOpcode 对应位置为true时有效
	opcodeByValue [256]OPCODE
	validOpcode   [256]bool

	// OpcodeByName 名称 => 标签
	OpcodeByName = make(map[string]OPCODE, numOpcodes)
)

func init() {
	for code := OPCODE(0); code < numOpcodes; code++ {
		info := opcodeArray[code]
		OpcodeByName[info.name] = code

		switch code {
		case OP_FALSE, OP_TRUE, OP_PUSH:
			// 别名与直接压栈操作码单独处理
			continue
		}
		opcodeByValue[info.value] = code
		validOpcode[info.value] = true
	}

	for v := 0x01; v <= opcodePushMax; v++ {
		opcodeByValue[v] = OP_PUSH
		validOpcode[v] = true
	}

	// 保留操作码别名
	for _, v := range []int{opcodeReserved1, opcodeReserved2} {
		opcodeByValue[v] = OP_RESERVED
		validOpcode[v] = true
	}

	// 空操作别名
	nops := []int{opcodeNop1}
	for v := opcodeNop4; v <= opcodeNop10; v++ {
		nops = append(nops, v)
	}
	for _, v := range nops {
		opcodeByValue[v] = OP_NOP
		validOpcode[v] = true
	}
}

func (code OPCODE) String() string {
	if code >= numOpcodes {
		return fmt.Sprintf("OP_UNKNOWN(%d)", uint8(code))
	}
	return opcodeArray[code].name
}

// Value 操作码的字节值。OP_PUSH 的实际字节值由数据长度决定，此处返回 0x01
func (code OPCODE) Value() byte {
	return opcodeArray[code].value
}

// IsValid 是否是已定义的标签
func (code OPCODE) IsValid() bool {
	return code < numOpcodes
}

// canonical 将别名归一化
func (code OPCODE) canonical() OPCODE {
	switch code {
	case OP_FALSE:
		return OP_0
	case OP_TRUE:
		return OP_1
	}
	return code
}

// isPush 是否是携带数据的压栈操作
func (code OPCODE) isPush() bool {
	switch code {
	case OP_PUSH, OP_PUSHDATA1, OP_PUSHDATA2, OP_PUSHDATA4:
		return true
	}
	return false
}

// isSmallInt 是否是 OP_0、OP_1 ~ OP_16 及其别名
func (code OPCODE) isSmallInt() bool {
	switch code {
	case OP_0, OP_FALSE, OP_TRUE:
		return true
	}
	return code >= OP_1 && code <= OP_16
}

// isDisabled 已被禁用的操作码，无论是否处于执行分支都会失败
func (code OPCODE) isDisabled() bool {
	switch code {
	case OP_CAT, OP_SUBSTR, OP_LEFT, OP_RIGHT, OP_INVERT, OP_AND, OP_OR,
		OP_XOR, OP_2MUL, OP_2DIV, OP_MUL, OP_DIV, OP_MOD, OP_LSHIFT,
		OP_RSHIFT:
		return true
	}
	return false
}

// isConditional 条件控制操作码，不论当前分支是否执行都需要处理
func (code OPCODE) isConditional() bool {
	switch code {
	case OP_IF, OP_NOTIF, OP_ELSE, OP_ENDIF:
		return true
	}
	return false
}

// counted 是否计入操作数限制：大于 OP_16 的操作码全部计入
func (code OPCODE) counted() bool {
	return code.Value() > opcodeArray[OP_16].value
}
