// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package examples

func GetFibExample() Example {
	return exampleSpec{
		Name: "fib",
		source: `
	; computes fib(R0) iteratively
	MOV R1, 0
	MOV R2, 1
loop:
	CMP R0, 0
	JE done
	MOV R3, R1
	ADD R3, R2
	MOV R1, R2
	MOV R2, R3
	SUB R0, 1
	JMP loop
done:
	OUT R1
	HLT
`,
		reference: fib,
	}.build()
}

func fib(n int) int {
	a, b := 0, 1
	for i := 0; i < n; i++ {
		a, b = b, a+b
	}
	return a
}

func GetFactorialExample() Example {
	return exampleSpec{
		Name: "factorial",
		source: `
	; computes R0! using one stack frame per factor
	MOV R1, 1
	CALL fact
	OUT R1
	HLT
fact:
	CMP R0, 1
	JG recurse
	RET
recurse:
	MUL R1, R0
	SUB R0, 1
	CALL fact
	RET
`,
		reference: factorial,
	}.build()
}

func factorial(n int) int {
	res := 1
	for i := 2; i <= n; i++ {
		res *= i
	}
	return res
}

func GetArithmeticExample() Example {
	return exampleSpec{
		Name: "arithmetic",
		source: `
	MOV R1, 0     ; result
	MOV R2, 1     ; i
loop:
	CMP R2, R0
	JG done
	ADD R1, R2
	MUL R1, R2
	MOV R3, R2
	MUL R3, R2
	ADD R1, R3    ; result += i*i
	SUB R1, R2
	DIV R1, R2
	MOV R4, R2
	DIV R4, 3
	MUL R4, 3
	MOV R5, R2
	SUB R5, R4    ; i % 3
	ADD R5, 1
	MUL R1, R5
	MUL R3, R2
	ADD R1, R3    ; result += i*i*i
	ADD R2, 1
	JMP loop
done:
	OUT R1
	HLT
`,
		reference: arithmetic,
	}.build()
}

func arithmetic(n int) int {
	result := 0
	for i := 1; i <= n; i++ {
		result += i
		result *= i
		result += i * i
		result -= i
		result = floorDiv(result, i)
		result *= (i % 3) + 1
		result += i * i * i
	}
	return result
}

func floorDiv(a, b int) int {
	res := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		res--
	}
	return res
}

func GetStackSumExample() Example {
	return exampleSpec{
		Name: "stacksum",
		source: `
	; pushes R0 down to 1 and sums them up while popping
	MOV R1, 0
	MOV R2, R0
push:
	CMP R2, 0
	JE sum
	PUSH R2
	SUB R2, 1
	JMP push
sum:
	CMP R2, R0
	JE done
	POP R3
	ADD R1, R3
	ADD R2, 1
	JMP sum
done:
	OUT R1
	HLT
`,
		reference: func(n int) int { return n * (n + 1) / 2 },
	}.build()
}
