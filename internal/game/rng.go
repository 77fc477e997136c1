package game

// Rand 可序列化的确定性随机数生成器（xorshift128+）
// 状态随GameState一起持久化，恢复后能复现完全相同的随机序列，
// 战斗骰子和AI决策都必须通过它取随机数。
type Rand struct {
	S0 uint64 `json:"s0"`
	S1 uint64 `json:"s1"`
}

// NewRand 根据种子创建生成器
func NewRand(seed int64) *Rand {
	// splitmix64展开种子，保证内部状态非零
	s := uint64(seed)
	r := &Rand{}
	r.S0 = splitmix64(&s)
	r.S1 = splitmix64(&s)
	if r.S0 == 0 && r.S1 == 0 {
		r.S1 = 1
	}
	return r
}

// splitmix64 种子扩展函数
func splitmix64(state *uint64) uint64 {
	*state += 0x9E3779B97F4A7C15
	z := *state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// next 生成下一个64位随机数
func (r *Rand) next() uint64 {
	s1 := r.S0
	s0 := r.S1
	r.S0 = s0
	s1 ^= s1 << 23
	r.S1 = s1 ^ s0 ^ (s1 >> 17) ^ (s0 >> 26)
	return r.S1 + s0
}

// Intn 返回[0, n)范围内的随机整数
func (r *Rand) Intn(n int) int {
	if n <= 0 {
		panic("Intn: n必须为正数")
	}
	return int(r.next() % uint64(n))
}

// RollDie 掷一个sides面的骰子，返回[1, sides]
func (r *Rand) RollDie(sides int) int {
	return r.Intn(sides) + 1
}

// Float64 返回[0, 1)范围内的随机浮点数
func (r *Rand) Float64() float64 {
	return float64(r.next()>>11) / (1 << 53)
}

// Pick 从n个元素中随机选择一个下标
func (r *Rand) Pick(n int) int {
	return r.Intn(n)
}

// Clone 复制生成器状态
func (r *Rand) Clone() *Rand {
	return &Rand{S0: r.S0, S1: r.S1}
}
