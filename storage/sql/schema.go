package sql

import (
	"crypto/sha1"
	"fmt"
)

type migration struct {
	key   string
	query string
}

func migQuery(query string) migration {
	return migration{
		key:   fmt.Sprintf("%x", sha1.Sum([]byte(query)))[0:8],
		query: query,
	}
}

func migrations(dialect string) []migration {
	datetime := "datetime"
	if dialect == DialectPostgres {
		datetime = "timestamp"
	}

	var queries []migration

	// Users
	queries = append(queries, migQuery("create table users ("+
		"id             varchar(64)  not null,"+
		"username       varchar(180) not null,"+
		"email          varchar(180) default '' not null,"+
		"alias          varchar(60)  default '' not null,"+
		"title          varchar(50)  default '' not null,"+
		"account_number varchar(30)  default '' not null,"+
		"enabled        boolean      default true not null,"+
		"roles          text         not null,"+
		"registered     "+datetime+" null,"+
		"PRIMARY KEY (id)"+
		");"))
	queries = append(queries, migQuery(`create unique index users_username on users(username);`))
	queries = append(queries, migQuery(`create index users_email on users(email);`))

	// Preferences
	queries = append(queries, migQuery("create table user_preferences ("+
		"user_id varchar(64)  not null,"+
		"name    varchar(50)  not null,"+
		"value   varchar(255) default '' not null,"+
		"PRIMARY KEY (user_id, name)"+
		");"))

	// Teams
	queries = append(queries, migQuery("create table teams ("+
		"id   varchar(64)  not null,"+
		"name varchar(100) not null,"+
		"PRIMARY KEY (id)"+
		");"))
	queries = append(queries, migQuery("create table team_members ("+
		"team_id varchar(64) not null,"+
		"user_id varchar(64) not null,"+
		"level   varchar(20) not null,"+ // member, manager, owner
		"PRIMARY KEY (team_id, user_id)"+
		");"))
	queries = append(queries, migQuery(`create index team_members_user on team_members(user_id);`))

	// Records owned by a user, reassigned on deletion
	queries = append(queries, migQuery("create table timesheets ("+
		"id          varchar(64) not null,"+
		"user_id     varchar(64) not null,"+
		"begin_time  "+datetime+" null,"+
		"end_time    "+datetime+" null,"+
		"description text null,"+
		"PRIMARY KEY (id)"+
		");"))
	queries = append(queries, migQuery(`create index timesheets_user on timesheets(user_id);`))
	queries = append(queries, migQuery("create table invoices ("+
		"id         varchar(64) not null,"+
		"user_id    varchar(64) not null,"+
		"number     varchar(50) default '' not null,"+
		"created_at "+datetime+" null,"+
		"PRIMARY KEY (id)"+
		");"))
	queries = append(queries, migQuery(`create index invoices_user on invoices(user_id);`))

	return queries
}
