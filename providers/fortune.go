/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package providers

import (
	"math/rand"
	"sync"
)

// the classic twenty answers
var fortuneLines = []string{
	`It is certain`,
	`It is decidedly so`,
	`Without a doubt`,
	`Yes definitely`,
	`You may rely on it`,
	`As I see it, yes`,
	`Most likely`,
	`Outlook good`,
	`Yes`,
	`Signs point to yes`,
	`Reply hazy, try again`,
	`Ask again later`,
	`Better not tell you now`,
	`Cannot predict now`,
	`Concentrate and ask again`,
	`Don't count on it`,
	`My reply is no`,
	`My sources say no`,
	`Outlook not so good`,
	`Very doubtful`,
}

var fortuneMtx sync.Mutex

// Fortune returns one canned oracle line.
func Fortune() string {
	fortuneMtx.Lock()
	defer fortuneMtx.Unlock()
	return fortuneLines[rand.Intn(len(fortuneLines))]
}
