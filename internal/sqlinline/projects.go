package sqlinline

const QSelectProjectOwner = `--sql 218f64ad-4c03-4a98-bf71-90ce5d2ab3e7
select user_id
from projects
where id = $1::uuid
limit 1;
`
