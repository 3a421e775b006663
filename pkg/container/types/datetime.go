// Copyright 2021 - 2022 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types

import (
	"fmt"
	"strconv"
	gotime "time"

	"github.com/matrixorigin/arrayagg/pkg/common/moerr"
)

// Date is the number of days since 0001-01-01.
type Date int32

// Datetime is the number of microseconds since 0001-01-01 00:00:00.
type Datetime int64

const (
	microSecsPerSec = 1000000
	secsPerDay      = 86400

	// days between 0001-01-01 and 1970-01-01
	unixEpochDays = 719162
)

func DateFromCalendar(year int32, month, day uint8) Date {
	t := gotime.Date(int(year), gotime.Month(month), int(day), 0, 0, 0, 0, gotime.UTC)
	return Date(t.Unix()/secsPerDay + unixEpochDays)
}

func (d Date) ToTime() gotime.Time {
	return gotime.Unix((int64(d)-unixEpochDays)*secsPerDay, 0).UTC()
}

func (d Date) String() string {
	return d.ToTime().Format("2006-01-02")
}

// ParseDateCast accepts yyyy-mm-dd.
func ParseDateCast(s string) (Date, error) {
	t, err := gotime.Parse("2006-01-02", s)
	if err != nil {
		return 0, moerr.NewInvalidInputNoCtx("invalid date value %s", s)
	}
	return Date(t.Unix()/secsPerDay + unixEpochDays), nil
}

func (dt Datetime) ToTime() gotime.Time {
	sec := int64(dt)/microSecsPerSec - unixEpochDays*secsPerDay
	usec := int64(dt) % microSecsPerSec
	return gotime.Unix(sec, usec*1000).UTC()
}

func (dt Datetime) String() string {
	t := dt.ToTime()
	if t.Nanosecond() == 0 {
		return t.Format("2006-01-02 15:04:05")
	}
	return t.Format("2006-01-02 15:04:05.000000")
}

func (dt Datetime) ToDate() Date {
	return Date(int64(dt) / microSecsPerSec / secsPerDay)
}

// ParseDatetime accepts yyyy-mm-dd hh:mm:ss with an optional fraction.
func ParseDatetime(s string) (Datetime, error) {
	for _, layout := range []string{"2006-01-02 15:04:05.999999", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := gotime.Parse(layout, s); err == nil {
			return FromGoTime(t), nil
		}
	}
	return 0, moerr.NewInvalidInputNoCtx("invalid datetime value %s", s)
}

func FromGoTime(t gotime.Time) Datetime {
	t = t.UTC()
	secs := t.Unix() + unixEpochDays*secsPerDay
	return Datetime(secs*microSecsPerSec + int64(t.Nanosecond()/1000))
}

// FormatValue renders a fixed width value the way query results print it.
func FormatValue[T FixedSizeT](v T) string {
	switch x := any(v).(type) {
	case bool:
		return strconv.FormatBool(x)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case Date:
		return x.String()
	case Datetime:
		return x.String()
	}
	return fmt.Sprintf("%v", v)
}
